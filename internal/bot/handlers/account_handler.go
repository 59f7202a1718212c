package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/Purpleaki2024/location-genius-bot/internal/admin"
	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

// NewAccountHandler returns the handler for /promote, /demote, /activate and
// /deactivate. The target is a Telegram user id or @username.
func NewAccountHandler(deps HandlerDeps, action admin.Action) HandlerFunc {
	return accountHandler{deps: deps, action: action}.Handle
}

type accountHandler struct {
	deps   HandlerDeps
	action admin.Action
}

func (h accountHandler) Handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", string(h.action))
	msg := update.Message
	actor := AccountFrom(ctx)
	if msg == nil || actor == nil {
		return
	}
	m := h.deps.Config.Messages

	ref := commandArgs(msg.Text)
	if ref == "" {
		reply(ctx, s, h.deps, msg, config.Format(m.AccountUsage, "command", string(h.action)))
		return
	}

	target, err := h.resolve(ctx, ref)
	if errors.Is(err, database.ErrNotFound) {
		reply(ctx, s, h.deps, msg, m.AccountNotFound)
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve target account", "error", err, "ref", ref)
		reply(ctx, s, h.deps, msg, m.GeneralError)
		return
	}

	out, err := h.deps.Admin.Apply(ctx, h.action, actor.ID, target.ID)
	switch {
	case errors.Is(err, admin.ErrSelfLockout):
		reply(ctx, s, h.deps, msg, config.Format(m.SelfLockout, "action", string(h.action)))
		return
	case errors.Is(err, admin.ErrAccountNotFound):
		reply(ctx, s, h.deps, msg, m.AccountNotFound)
		return
	case err != nil:
		log.ErrorContext(ctx, "Failed to apply account action", "error", err, "target_id", target.ID)
		reply(ctx, s, h.deps, msg, m.GeneralError)
		return
	}

	var tmpl string
	switch h.action {
	case admin.ActionPromote:
		tmpl = m.Promoted
	case admin.ActionDemote:
		tmpl = m.Demoted
	case admin.ActionActivate:
		tmpl = m.Activated
	case admin.ActionDeactivate:
		tmpl = m.Deactivated
	}
	reply(ctx, s, h.deps, msg, config.Format(tmpl, "user", out.Account.DisplayName()))
}

// resolve looks a target up by @username or Telegram id.
func (h accountHandler) resolve(ctx context.Context, ref string) (*database.Account, error) {
	if name, ok := strings.CutPrefix(ref, "@"); ok {
		return h.deps.Store.GetAccountByUsername(ctx, name)
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return h.deps.Store.GetAccountByUsername(ctx, ref)
	}
	return h.deps.Store.GetAccountByExternalID(ctx, id)
}
