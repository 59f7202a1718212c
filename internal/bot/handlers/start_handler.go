package handlers

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot/models"

	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/conversation"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler resets the dialogue and greets the user with their remaining quota.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")
	msg := update.Message
	acc := AccountFrom(ctx)
	if msg == nil || acc == nil {
		log.WarnContext(ctx, "Start handler received update without message or account", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /start command", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	h.deps.Tracker.Apply(ctx, msg.From.ID, conversation.EventStart)

	remaining, err := remainingQuota(ctx, h.deps, acc)
	if err != nil {
		log.ErrorContext(ctx, "Failed to count queries", "error", err, "account_id", acc.ID)
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, s, h.deps, msg, config.Format(h.deps.Config.Messages.Welcome,
		"name", greetingName(acc),
		"remaining", strconv.Itoa(remaining),
	))
}
