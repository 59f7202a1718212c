package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/geocode"
)

// NewLocationHandler returns a handler for shared location pins. The pin is
// reverse geocoded and logged even when no address is found.
func NewLocationHandler(deps HandlerDeps) HandlerFunc {
	return locationHandler{deps}.Handle
}

type locationHandler struct {
	deps HandlerDeps
}

func (h locationHandler) Handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "location")
	msg := update.Message
	acc := AccountFrom(ctx)
	if msg == nil || msg.Location == nil || acc == nil {
		return
	}

	point := geocode.Result{Latitude: msg.Location.Latitude, Longitude: msg.Location.Longitude}
	lat, lon := geocode.FormatCoord(point.Latitude), geocode.FormatCoord(point.Longitude)

	chatAction(ctx, s, h.deps, msg.Chat.ID, models.ChatActionFindLocation)
	address, ok := h.deps.Geocoder.Reverse(ctx, point.Latitude, point.Longitude)
	if ok {
		reply(ctx, s, h.deps, msg, config.Format(h.deps.Config.Messages.ReverseFound, "address", address))
	} else {
		reply(ctx, s, h.deps, msg, config.Format(h.deps.Config.Messages.ReverseNotFound, "lat", lat, "lon", lon))
	}

	if err := h.deps.Store.AppendLocationQuery(ctx, newQuery(acc, &point, address, "")); err != nil {
		log.ErrorContext(ctx, "Failed to log shared location", "error", err, "account_id", acc.ID)
	}
}
