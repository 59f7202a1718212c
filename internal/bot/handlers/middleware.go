// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"errors"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Purpleaki2024/location-genius-bot/internal/auth"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

// HandlerFunc handles an update, replying through s.
type HandlerFunc func(ctx context.Context, s Sender, update *models.Update)

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Adapt turns a HandlerFunc into a go-telegram handler.
func Adapt(h HandlerFunc) tgbot.HandlerFunc {
	return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
		h(ctx, b, update)
	}
}

// Chain applies mw so that the first middleware is the outermost.
func Chain(h HandlerFunc, mw ...Middleware) HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

type accountKey struct{}

func withAccount(ctx context.Context, acc *database.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, acc)
}

// AccountFrom returns the caller's account stored by Admit.
func AccountFrom(ctx context.Context) *database.Account {
	acc, _ := ctx.Value(accountKey{}).(*database.Account)
	return acc
}

// Admit resolves the sender's account, silently drops updates from inactive
// accounts, applies the rate limit for command and serializes the update with
// the same user's other updates.
func Admit(deps HandlerDeps, command string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, s Sender, update *models.Update) {
			msg := update.Message
			if msg == nil || msg.From == nil {
				return
			}
			log := deps.Logger.With("middleware", "Admit", "command", command, "user_id", msg.From.ID)

			acc, created, err := deps.Store.GetOrCreateAccount(ctx, database.ExternalProfile{
				ExternalID: msg.From.ID,
				Username:   msg.From.Username,
				FirstName:  msg.From.FirstName,
				LastName:   msg.From.LastName,
			})
			if err != nil {
				log.ErrorContext(ctx, "Failed to resolve account", "error", err)
				reply(ctx, s, deps, msg, deps.Config.Messages.GeneralError)
				return
			}
			if created {
				log.InfoContext(ctx, "Registered new account", "account_id", acc.ID)
			}
			if !acc.IsActive {
				log.DebugContext(ctx, "Ignoring update from inactive account", "account_id", acc.ID)
				return
			}

			decision := deps.Limiter.Check(msg.From.ID, deps.Config.Limits.Interval(command))
			if !decision.Allowed {
				log.DebugContext(ctx, "Rate limited", "notify", decision.Notify)
				if decision.Notify {
					reply(ctx, s, deps, msg, deps.Config.Messages.SlowDown)
				}
				return
			}

			unlock := deps.Tracker.Lock(msg.From.ID)
			defer unlock()

			next(withAccount(ctx, acc), s, update)
		}
	}
}

// AdminOnly lets the update through only when the sender is currently an
// active admin. Everyone else gets the denial reply.
func AdminOnly(deps HandlerDeps) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, s Sender, update *models.Update) {
			msg := update.Message
			if msg == nil || msg.From == nil {
				return
			}

			_, err := deps.Authorizer.Authorize(ctx, msg.From.ID)
			if err != nil {
				log := deps.Logger.With("middleware", "AdminOnly")
				if errors.Is(err, auth.ErrNotAuthorized) {
					log.WarnContext(ctx, "Unauthorized access attempt", "user_id", msg.From.ID, "chat_id", msg.Chat.ID)
					reply(ctx, s, deps, msg, deps.Config.Messages.NotAuthorized)
				} else {
					log.ErrorContext(ctx, "Authorization check failed", "error", err, "user_id", msg.From.ID)
					reply(ctx, s, deps, msg, deps.Config.Messages.GeneralError)
				}
				return
			}

			next(ctx, s, update)
		}
	}
}
