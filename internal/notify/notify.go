// Package notify delivers best-effort side-channel messages to bot users.
package notify

import (
	"context"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MessageSender is the part of *bot.Bot used to deliver notices.
type MessageSender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

// Result reports what happened to a notice. Callers may ignore it.
type Result struct {
	Delivered bool
	// Skipped is set when the recipient has no chat identity.
	Skipped bool
	Err     error
}

// Notifier sends a text to a Telegram user.
type Notifier interface {
	Notify(ctx context.Context, externalID int64, text string) Result
}

// BotNotifier sends notices through the bot API.
type BotNotifier struct {
	sender MessageSender
	logger *slog.Logger
}

// NewBotNotifier creates a BotNotifier.
func NewBotNotifier(sender MessageSender, logger *slog.Logger) *BotNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &BotNotifier{sender: sender, logger: logger.With("component", "notifier")}
}

// Notify sends text to externalID. A zero id is skipped; send errors are
// logged and returned in the Result, never escalated.
func (n *BotNotifier) Notify(ctx context.Context, externalID int64, text string) Result {
	if externalID == 0 || n.sender == nil {
		return Result{Skipped: true}
	}
	_, err := n.sender.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: externalID, Text: text})
	if err != nil {
		n.logger.WarnContext(ctx, "Failed to deliver notification", "error", err, "user_id", externalID)
		return Result{Err: err}
	}
	return Result{Delivered: true}
}

// Discard drops every notice. Used when no bot is running.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(context.Context, int64, string) Result { return Result{Skipped: true} }
