package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/geocode"
)

// NewLocateHandler returns a handler for /locate <address>.
func NewLocateHandler(deps HandlerDeps) HandlerFunc {
	return locateHandler{deps}.Handle
}

type locateHandler struct {
	deps HandlerDeps
}

func (h locateHandler) Handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "locate")
	msg := update.Message
	acc := AccountFrom(ctx)
	if msg == nil || acc == nil {
		return
	}

	query := commandArgs(msg.Text)
	if query == "" {
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.LocateUsage)
		return
	}

	chatAction(ctx, s, h.deps, msg.Chat.ID, models.ChatActionFindLocation)
	res, ok := h.deps.Geocoder.Geocode(ctx, query)
	if !ok {
		reply(ctx, s, h.deps, msg, config.Format(h.deps.Config.Messages.NotFound, "query", query))
		return
	}

	_, err := s.SendLocation(ctx, &tgbot.SendLocationParams{
		ChatID:    msg.Chat.ID,
		Latitude:  res.Latitude,
		Longitude: res.Longitude,
	})
	if err != nil {
		log.WarnContext(ctx, "Failed to send location pin", "error", err, "chat_id", msg.Chat.ID)
	}

	reply(ctx, s, h.deps, msg, config.Format(h.deps.Config.Messages.LocationFound,
		"address", res.Address,
		"lat", geocode.FormatCoord(res.Latitude),
		"lon", geocode.FormatCoord(res.Longitude),
	))

	if err := h.deps.Store.AppendLocationQuery(ctx, newQuery(acc, &res, res.Address, query)); err != nil {
		log.ErrorContext(ctx, "Failed to log location query", "error", err, "account_id", acc.ID)
	}
}
