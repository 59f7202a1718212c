package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) HandlerFunc {
	return helpHandler{deps}.Handle
}

// helpHandler lists the commands; admins also see the admin commands.
type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "help")
	msg := update.Message
	acc := AccountFrom(ctx)
	if msg == nil || acc == nil {
		log.WarnContext(ctx, "Help handler received update without message or account", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /help command", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	text := h.deps.Config.Messages.Help
	if acc.IsAdmin {
		text += h.deps.Config.Messages.HelpAdmin
	}
	reply(ctx, s, h.deps, msg, text)
}
