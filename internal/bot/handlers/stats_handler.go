package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

// usersPageSize bounds the /users listing to one chat message.
const usersPageSize = 30

// NewStatsHandler returns a handler for the admin /stats command.
func NewStatsHandler(deps HandlerDeps) HandlerFunc {
	return statsHandler{deps}.Handle
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")
	msg := update.Message
	if msg == nil {
		return
	}

	stats, err := h.deps.Store.GetStats(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load stats", "error", err)
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, s, h.deps, msg, config.Format(h.deps.Config.Messages.Stats,
		"accounts", strconv.Itoa(stats.Accounts),
		"admins", strconv.Itoa(stats.Admins),
		"queries", strconv.Itoa(stats.Queries),
	))
}

// NewUsersHandler returns a handler for the admin /users command.
// An optional argument selects the page.
func NewUsersHandler(deps HandlerDeps) HandlerFunc {
	return usersHandler{deps}.Handle
}

type usersHandler struct {
	deps HandlerDeps
}

func (h usersHandler) Handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "users")
	msg := update.Message
	if msg == nil {
		return
	}

	page := database.Page{Number: 1, Size: usersPageSize}
	if n, err := strconv.Atoi(commandArgs(msg.Text)); err == nil {
		page.Number = n
	}

	accounts, total, err := h.deps.Store.ListAccounts(ctx, page)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list accounts", "error", err)
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.GeneralError)
		return
	}

	var b strings.Builder
	b.WriteString(config.Format(h.deps.Config.Messages.AccountsHeader, "total", strconv.Itoa(total)))
	for i := range accounts {
		b.WriteString("\n")
		b.WriteString(formatAccountLine(&accounts[i]))
	}
	reply(ctx, s, h.deps, msg, b.String())
}
