package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/conversation"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

// NewDefaultHandler returns the catch-all handler for updates that match no
// command: shared locations go to the reverse lookup, text is dispatched on
// the sender's dialogue state.
func NewDefaultHandler(deps HandlerDeps) HandlerFunc {
	text := Chain(textHandler{deps}.Handle, Admit(deps, "text"))
	location := Chain(NewLocationHandler(deps), Admit(deps, "location"))

	return func(ctx context.Context, s Sender, update *models.Update) {
		msg := update.Message
		if msg == nil || msg.From == nil {
			return
		}
		switch {
		case msg.Location != nil:
			location(ctx, s, update)
		case msg.Text != "":
			text(ctx, s, update)
		}
	}
}

type textHandler struct {
	deps HandlerDeps
}

func (h textHandler) Handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "text")
	msg := update.Message
	acc := AccountFrom(ctx)
	if msg == nil || acc == nil {
		return
	}

	text := strings.TrimSpace(msg.Text)
	state := h.deps.Tracker.Get(ctx, msg.From.ID)

	// Unknown commands are not lookups and leave the dialogue where it is.
	if strings.HasPrefix(text, "/") || !state.Awaiting() || text == "" {
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.Fallback)
		return
	}

	// One attempt per /number: the dialogue returns to start whatever the outcome.
	h.deps.Tracker.Apply(ctx, msg.From.ID, conversation.EventText)
	log.InfoContext(ctx, "Looking up location", "user_id", msg.From.ID, "state", state)

	chatAction(ctx, s, h.deps, msg.Chat.ID, models.ChatActionFindLocation)
	res, ok := h.deps.Geocoder.Geocode(ctx, text)
	if !ok {
		reply(ctx, s, h.deps, msg, config.Format(h.deps.Config.Messages.NotFound, "query", text))
		return
	}

	if err := h.deps.Store.AppendLocationQuery(ctx, newQuery(acc, &res, res.Address, text)); err != nil {
		log.ErrorContext(ctx, "Failed to log location query", "error", err, "account_id", acc.ID)
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.GeneralError)
		return
	}

	limit := 1
	if state == conversation.StateAwaitingLocationNumbers {
		limit = h.deps.Config.Limits.NearestCount
	}

	nearby, err := h.deps.Store.NearestLocationQueries(ctx, res.Latitude, res.Longitude, acc.ID, limit)
	if err != nil {
		log.ErrorContext(ctx, "Failed to find nearby records", "error", err)
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, s, h.deps, msg, h.renderNearby(state, res.Address, nearby))
}

func (h textHandler) renderNearby(state conversation.State, address string, nearby []database.NearbyRecord) string {
	m := h.deps.Config.Messages
	if len(nearby) == 0 {
		return config.Format(m.NoNearby, "address", address)
	}
	if state == conversation.StateAwaitingLocationNumbers {
		return formatNearestList(config.Format(m.NearestList, "address", address), nearby)
	}
	closest := nearby[0]
	near := closest.Address.String
	if near == "" {
		near = closest.Latitude.String + ", " + closest.Longitude.String
	}
	return config.Format(m.Nearest,
		"address", address,
		"contact", closest.OwnerDisplayName(),
		"near", near,
	)
}
