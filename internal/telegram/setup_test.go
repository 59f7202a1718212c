package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Purpleaki2024/location-genius-bot/internal/bot/handlers"
)

type registration struct {
	pattern   string
	matchType bot.MatchType
}

type fakeRegistrar struct {
	got []registration
}

func (f *fakeRegistrar) RegisterHandler(_ bot.HandlerType, pattern string, matchType bot.MatchType, _ bot.HandlerFunc, _ ...bot.Middleware) string {
	f.got = append(f.got, registration{pattern, matchType})
	return pattern
}

type fakeSetter struct {
	params *bot.SetMyCommandsParams
	err    error
}

func (f *fakeSetter) SetMyCommands(_ context.Context, p *bot.SetMyCommandsParams) (bool, error) {
	f.params = p
	return f.err == nil, f.err
}

func noop(context.Context, *bot.Bot, *models.Update) {}

func sample() map[string]handlers.RegisteredHandler {
	return map[string]handlers.RegisteredHandler{
		"/start":  {Pattern: "start", Handler: noop, MatchType: bot.MatchTypeCommandStartOnly, Description: "Restart"},
		"/help":   {Pattern: "help", Handler: noop, MatchType: bot.MatchTypeCommandStartOnly, Description: "Help"},
		"/stats":  {Pattern: "stats", Handler: noop, MatchType: bot.MatchTypeCommandStartOnly, Description: "Stats", AdminOnly: true},
		"/broken": {Pattern: "broken", Description: "No handler"},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterHandlers(t *testing.T) {
	t.Parallel()

	r := &fakeRegistrar{}
	require.NoError(t, RegisterHandlers(r, discard(), sample()))
	assert.Len(t, r.got, 3, "nil handlers are skipped")
	for _, g := range r.got {
		assert.Equal(t, bot.MatchTypeCommandStartOnly, g.matchType)
	}

	require.NoError(t, RegisterHandlers(r, nil, nil))
}

func TestCommandMenu(t *testing.T) {
	t.Parallel()

	got := CommandMenu(sample())
	assert.Equal(t, []models.BotCommand{
		{Command: "help", Description: "Help"},
		{Command: "start", Description: "Restart"},
	}, got)
}

func TestPublishCommands(t *testing.T) {
	t.Parallel()

	s := &fakeSetter{}
	PublishCommands(context.Background(), s, discard(), sample())
	require.NotNil(t, s.params)
	assert.Len(t, s.params.Commands, 2)

	failing := &fakeSetter{err: errors.New("boom")}
	PublishCommands(context.Background(), failing, discard(), sample())
	assert.NotNil(t, failing.params)
}

func TestNewTelegramBotRequiresToken(t *testing.T) {
	t.Parallel()
	_, err := NewTelegramBot("", nil)
	require.Error(t, err)
}
