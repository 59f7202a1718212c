// Package admin implements account administration shared by the bot's admin
// commands and the web dashboard.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Purpleaki2024/location-genius-bot/internal/auth"
	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
	"github.com/Purpleaki2024/location-genius-bot/internal/notify"
)

var (
	// ErrSelfLockout rejects demoting or deactivating one's own account.
	ErrSelfLockout = errors.New("cannot lock out own account")
	// ErrAccountNotFound is returned when the target account does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

// Action is an administrative change to an account.
type Action string

// Supported actions.
const (
	ActionPromote    Action = "promote"
	ActionDemote     Action = "demote"
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionPromote, ActionDemote, ActionActivate, ActionDeactivate:
		return a, true
	default:
		return "", false
	}
}

// AccountStore is the subset of the store the service mutates.
type AccountStore interface {
	GetAccountByID(ctx context.Context, id int64) (*database.Account, error)
	PromoteAccount(ctx context.Context, id int64, totpSecret string) (*database.Account, error)
	SetAccountAdmin(ctx context.Context, id int64, isAdmin bool) (*database.Account, error)
	SetAccountActive(ctx context.Context, id int64, isActive bool) (*database.Account, error)
}

// Outcome describes an applied action.
type Outcome struct {
	Account *database.Account
	// Changed is false when the account was already in the requested state.
	Changed bool
	Notice  notify.Result
}

// Service applies administrative actions and notifies the affected user.
type Service struct {
	store     AccountStore
	notifier  notify.Notifier
	messages  config.MessagesConfig
	logger    *slog.Logger
	newSecret func(accountName string) (string, error)
}

// NewService creates a Service. A nil notifier discards notices.
func NewService(store AccountStore, notifier notify.Notifier, messages config.MessagesConfig, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		notifier:  notifier,
		messages:  messages,
		logger:    logger.With("component", "admin_service"),
		newSecret: auth.NewTOTPSecret,
	}
}

// Apply dispatches to the method for action.
func (s *Service) Apply(ctx context.Context, action Action, actorID, targetID int64) (*Outcome, error) {
	switch action {
	case ActionPromote:
		return s.Promote(ctx, actorID, targetID)
	case ActionDemote:
		return s.Demote(ctx, actorID, targetID)
	case ActionActivate:
		return s.Activate(ctx, actorID, targetID)
	case ActionDeactivate:
		return s.Deactivate(ctx, actorID, targetID)
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

// Promote grants admin rights and provisions a TOTP secret if none exists.
// The target is told the secret through the bot.
func (s *Service) Promote(ctx context.Context, actorID, targetID int64) (*Outcome, error) {
	target, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}

	secret := ""
	if !target.HasTOTP() {
		secret, err = s.newSecret(target.Username)
		if err != nil {
			return nil, err
		}
	}

	updated, err := s.store.PromoteAccount(ctx, targetID, secret)
	if err != nil {
		return nil, s.mapErr(err)
	}
	s.logger.InfoContext(ctx, "Account promoted", "actor_id", actorID, "target_id", targetID)

	out := &Outcome{Account: updated, Changed: !target.IsAdmin}
	if out.Changed {
		text := config.Format(s.messages.NotifyPromoted, "secret", updated.TOTPSecret.String)
		out.Notice = s.notify(ctx, updated, text)
	}
	return out, nil
}

// Demote revokes admin rights. Demoting oneself is refused.
func (s *Service) Demote(ctx context.Context, actorID, targetID int64) (*Outcome, error) {
	if actorID == targetID {
		return nil, ErrSelfLockout
	}
	return s.toggle(ctx, actorID, targetID, func(a *database.Account) bool { return a.IsAdmin }, false,
		s.store.SetAccountAdmin, s.messages.NotifyDemoted, "Account demoted")
}

// Activate re-enables an account.
func (s *Service) Activate(ctx context.Context, actorID, targetID int64) (*Outcome, error) {
	return s.toggle(ctx, actorID, targetID, func(a *database.Account) bool { return a.IsActive }, true,
		s.store.SetAccountActive, s.messages.NotifyActivated, "Account activated")
}

// Deactivate disables an account. Deactivating oneself is refused.
func (s *Service) Deactivate(ctx context.Context, actorID, targetID int64) (*Outcome, error) {
	if actorID == targetID {
		return nil, ErrSelfLockout
	}
	return s.toggle(ctx, actorID, targetID, func(a *database.Account) bool { return a.IsActive }, false,
		s.store.SetAccountActive, s.messages.NotifyDeactivated, "Account deactivated")
}

func (s *Service) toggle(
	ctx context.Context,
	actorID, targetID int64,
	current func(*database.Account) bool,
	want bool,
	set func(context.Context, int64, bool) (*database.Account, error),
	notice, logMsg string,
) (*Outcome, error) {
	target, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}

	updated, err := set(ctx, targetID, want)
	if err != nil {
		return nil, s.mapErr(err)
	}
	s.logger.InfoContext(ctx, logMsg, "actor_id", actorID, "target_id", targetID)

	out := &Outcome{Account: updated, Changed: current(target) != want}
	if out.Changed {
		out.Notice = s.notify(ctx, updated, notice)
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id int64) (*database.Account, error) {
	acc, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return acc, nil
}

func (s *Service) mapErr(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrAccountNotFound
	}
	return err
}

func (s *Service) notify(ctx context.Context, acc *database.Account, text string) notify.Result {
	if !acc.ExternalID.Valid {
		return notify.Result{Skipped: true}
	}
	return s.notifier.Notify(ctx, acc.ExternalID.Int64, text)
}
