package handlers

import (
	"context"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Purpleaki2024/location-genius-bot/internal/admin"
	"github.com/Purpleaki2024/location-genius-bot/internal/auth"
	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/conversation"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
	"github.com/Purpleaki2024/location-genius-bot/internal/geocode"
	"github.com/Purpleaki2024/location-genius-bot/internal/ratelimit"
)

// Sender is the part of *bot.Bot the handlers reply through.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	SendLocation(ctx context.Context, params *tgbot.SendLocationParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *tgbot.SendDocumentParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *tgbot.SendChatActionParams) (bool, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
// Tracker and Limiter are owned by the dispatcher and shared by every handler.
type HandlerDeps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Store      database.Store
	Geocoder   geocode.Geocoder
	Tracker    *conversation.Tracker
	Limiter    *ratelimit.Limiter
	Admin      *admin.Service
	Authorizer auth.Authorizer
	Now        func() time.Time
}

func (d HandlerDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
