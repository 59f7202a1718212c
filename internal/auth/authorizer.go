package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

// Authorizer resolves an identity to an active admin account on every call.
type Authorizer interface {
	Authorize(ctx context.Context, id int64) (*database.Account, error)
}

// SessionAuth authorizes by internal account id, as stored in a web session.
type SessionAuth struct {
	Accounts AccountReader
}

// Authorize implements Authorizer.
func (s SessionAuth) Authorize(ctx context.Context, id int64) (*database.Account, error) {
	acc, err := s.Accounts.GetAccountByID(ctx, id)
	return checkAdmin(acc, err)
}

// DirectIDAuth authorizes by Telegram user id.
type DirectIDAuth struct {
	Accounts AccountReader
}

// Authorize implements Authorizer.
func (d DirectIDAuth) Authorize(ctx context.Context, externalID int64) (*database.Account, error) {
	acc, err := d.Accounts.GetAccountByExternalID(ctx, externalID)
	return checkAdmin(acc, err)
}

func checkAdmin(acc *database.Account, err error) (*database.Account, error) {
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotAuthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if !acc.IsAdmin || !acc.IsActive {
		return nil, ErrNotAuthorized
	}
	return acc, nil
}
