package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/geocode"
)

// NewCategoryHandler returns the handler shared by /city, /town, /village
// and /postcode. The command name selects the structured search field.
func NewCategoryHandler(deps HandlerDeps) HandlerFunc {
	return categoryHandler{deps}.Handle
}

type categoryHandler struct {
	deps HandlerDeps
}

func (h categoryHandler) Handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "category")
	msg := update.Message
	acc := AccountFrom(ctx)
	if msg == nil || acc == nil {
		return
	}

	command := commandName(msg.Text)
	kind, ok := geocode.ParseKind(command)
	if !ok {
		log.WarnContext(ctx, "Category handler received unknown command", "command", command)
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.Fallback)
		return
	}

	name := commandArgs(msg.Text)
	if name == "" {
		reply(ctx, s, h.deps, msg, config.Format(h.deps.Config.Messages.CategoryUsage, "command", command))
		return
	}

	chatAction(ctx, s, h.deps, msg.Chat.ID, models.ChatActionFindLocation)
	res, found := h.deps.Geocoder.Search(ctx, kind, name)
	if !found {
		reply(ctx, s, h.deps, msg, config.Format(h.deps.Config.Messages.NotFound, "query", name))
		// misses are still recorded, without coordinates
		attempt := "Search for " + command + ": " + name
		if err := h.deps.Store.AppendLocationQuery(ctx, newQuery(acc, nil, attempt, name)); err != nil {
			log.ErrorContext(ctx, "Failed to log category search", "error", err, "account_id", acc.ID)
		}
		return
	}

	reply(ctx, s, h.deps, msg, config.Format(h.deps.Config.Messages.CategoryFound,
		"command", command,
		"query", name,
		"address", res.Address,
		"lat", geocode.FormatCoord(res.Latitude),
		"lon", geocode.FormatCoord(res.Longitude),
	))

	if err := h.deps.Store.AppendLocationQuery(ctx, newQuery(acc, &res, res.Address, name)); err != nil {
		log.ErrorContext(ctx, "Failed to log category search", "error", err, "account_id", acc.ID)
	}
}
