package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/Purpleaki2024/location-genius-bot/internal/conversation"
)

// NewNumberHandler returns a handler for /number, which awaits one address
// and answers with the closest contact.
func NewNumberHandler(deps HandlerDeps) HandlerFunc {
	return numberHandler{deps: deps, event: conversation.EventNumber, prompt: deps.Config.Messages.PromptLocation}.Handle
}

// NewNumbersHandler returns a handler for /numbers, which awaits one address
// and answers with a list of the closest contacts.
func NewNumbersHandler(deps HandlerDeps) HandlerFunc {
	return numberHandler{deps: deps, event: conversation.EventNumbers, prompt: deps.Config.Messages.PromptLocationNumbers}.Handle
}

type numberHandler struct {
	deps   HandlerDeps
	event  conversation.Event
	prompt string
}

func (h numberHandler) Handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", h.event.String())
	msg := update.Message
	acc := AccountFrom(ctx)
	if msg == nil || acc == nil {
		return
	}

	remaining, err := remainingQuota(ctx, h.deps, acc)
	if err != nil {
		log.ErrorContext(ctx, "Failed to count queries", "error", err, "account_id", acc.ID)
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.GeneralError)
		return
	}
	if remaining == 0 {
		log.InfoContext(ctx, "Daily quota exhausted", "account_id", acc.ID)
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.QuotaExhausted)
		return
	}

	state := h.deps.Tracker.Apply(ctx, msg.From.ID, h.event)
	log.DebugContext(ctx, "Awaiting location", "user_id", msg.From.ID, "state", state)
	reply(ctx, s, h.deps, msg, h.prompt)
}
