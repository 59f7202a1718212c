package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const accountColumns = `id, external_id, username, first_name, last_name, is_admin, is_active,
        password_hash, totp_secret, created_at, updated_at`

func (s *sqlxStore) getAccount(ctx context.Context, q sqlx.QueryerContext, where string, arg any) (*Account, error) {
	return s.getAccountOrdered(ctx, q, where, "id", arg)
}

func (s *sqlxStore) getAccountOrdered(ctx context.Context, q sqlx.QueryerContext, where, order string, arg any) (*Account, error) {
	var acc Account
	query := s.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE ` + where + ` ORDER BY ` + order + ` LIMIT 1`)

	err := sqlx.GetContext(ctx, q, &acc, query, arg)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting account", "where", where, "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acc, nil
}

// GetAccountByID looks up an account by internal id.
func (s *sqlxStore) GetAccountByID(ctx context.Context, id int64) (*Account, error) {
	return s.getAccount(ctx, s.db, "id = ?", id)
}

// GetAccountByExternalID looks up an account by Telegram user id.
func (s *sqlxStore) GetAccountByExternalID(ctx context.Context, externalID int64) (*Account, error) {
	if externalID == 0 {
		return nil, ErrNotFound
	}
	return s.getAccount(ctx, s.db, "external_id = ?", externalID)
}

// usernameOrder ranks accounts holding a password ahead of bot-only accounts
// that happen to share the name, then by id.
const usernameOrder = `CASE WHEN password_hash IS NOT NULL AND password_hash <> '' THEN 0 ELSE 1 END, id`

// GetAccountByUsername matches usernames case-insensitively. When several
// accounts share a name, one with a password wins over older bot-only rows.
func (s *sqlxStore) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	if username == "" {
		return nil, ErrNotFound
	}
	return s.getAccountOrdered(ctx, s.db, "LOWER(username) = LOWER(?)", usernameOrder, username)
}

// GetOrCreateAccount implements the first-contact and refresh rules for bot users.
// Only non-empty reported values overwrite stored profile fields.
func (s *sqlxStore) GetOrCreateAccount(ctx context.Context, profile ExternalProfile) (*Account, bool, error) {
	if profile.ExternalID == 0 {
		return nil, false, fmt.Errorf("external_id cannot be zero")
	}

	var (
		acc     *Account
		created bool
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.getAccount(ctx, tx, "external_id = ?", profile.ExternalID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		now := s.now()
		if existing == nil {
			insert := tx.Rebind(`
                INSERT INTO accounts (external_id, username, first_name, last_name, is_admin, is_active, created_at, updated_at)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT (external_id) DO NOTHING
            `)
			res, err := tx.ExecContext(ctx, insert, profile.ExternalID, profile.Username, profile.FirstName,
				profile.LastName, false, true, now, now)
			if err != nil {
				s.logger.ErrorContext(ctx, "Error creating account", "external_id", profile.ExternalID, "error", err)
				return fmt.Errorf("failed to create account for external id %d: %w", profile.ExternalID, err)
			}
			if affected, err := res.RowsAffected(); err == nil && affected == 1 {
				created = true
			}
			acc, err = s.getAccount(ctx, tx, "external_id = ?", profile.ExternalID)
			return err
		}

		changed := false
		if profile.Username != "" && existing.Username != profile.Username {
			existing.Username = profile.Username
			changed = true
		}
		if profile.FirstName != "" && existing.FirstName != profile.FirstName {
			existing.FirstName = profile.FirstName
			changed = true
		}
		if profile.LastName != "" && existing.LastName != profile.LastName {
			existing.LastName = profile.LastName
			changed = true
		}
		if changed {
			existing.UpdatedAt = now
			update := `
                UPDATE accounts SET username = :username, first_name = :first_name,
                    last_name = :last_name, updated_at = :updated_at
                WHERE id = :id
            `
			if _, err := tx.NamedExecContext(ctx, update, existing); err != nil {
				s.logger.ErrorContext(ctx, "Error refreshing account profile", "account_id", existing.ID, "error", err)
				return fmt.Errorf("failed to refresh account %d: %w", existing.ID, err)
			}
		}
		acc = existing
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.InfoContext(ctx, "Account created on first contact", "account_id", acc.ID, "external_id", profile.ExternalID)
	}
	return acc, created, nil
}

// ListAccounts returns admins first, then by id.
func (s *sqlxStore) ListAccounts(ctx context.Context, page Page) ([]Account, int, error) {
	page = page.Normalize()

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM accounts`); err != nil {
		s.logger.ErrorContext(ctx, "Error counting accounts", "error", err)
		return nil, 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	var accounts []Account
	query := s.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts
        ORDER BY is_admin DESC, id ASC
        LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &accounts, query, page.Size, page.Offset()); err != nil {
		s.logger.ErrorContext(ctx, "Error listing accounts", "page", page.Number, "error", err)
		return nil, 0, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, total, nil
}

func (s *sqlxStore) updateAccount(ctx context.Context, id int64, set string, args ...any) (*Account, error) {
	var acc *Account
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`UPDATE accounts SET ` + set + `, updated_at = ? WHERE id = ?`)
		res, err := tx.ExecContext(ctx, query, append(args, s.now(), id)...)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error updating account", "account_id", id, "error", err)
			return fmt.Errorf("failed to update account %d: %w", id, err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return ErrNotFound
		}
		acc, err = s.getAccount(ctx, tx, "id = ?", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// PromoteAccount keeps an existing TOTP secret and only fills a missing or empty one.
func (s *sqlxStore) PromoteAccount(ctx context.Context, id int64, totpSecret string) (*Account, error) {
	var secret sql.NullString
	if totpSecret != "" {
		secret = sql.NullString{String: totpSecret, Valid: true}
	}
	acc, err := s.updateAccount(ctx, id, "is_admin = ?, totp_secret = COALESCE(NULLIF(totp_secret, ''), ?)", true, secret)
	if err == nil {
		s.logger.InfoContext(ctx, "Account promoted", "account_id", id)
	}
	return acc, err
}

// SetAccountAdmin sets or clears the admin flag.
func (s *sqlxStore) SetAccountAdmin(ctx context.Context, id int64, isAdmin bool) (*Account, error) {
	acc, err := s.updateAccount(ctx, id, "is_admin = ?", isAdmin)
	if err == nil {
		s.logger.InfoContext(ctx, "Account admin flag changed", "account_id", id, "is_admin", isAdmin)
	}
	return acc, err
}

// SetAccountActive sets or clears the active flag.
func (s *sqlxStore) SetAccountActive(ctx context.Context, id int64, isActive bool) (*Account, error) {
	acc, err := s.updateAccount(ctx, id, "is_active = ?", isActive)
	if err == nil {
		s.logger.InfoContext(ctx, "Account active flag changed", "account_id", id, "is_active", isActive)
	}
	return acc, err
}

// EnsureInitialAdmin inserts the seed admin only while no admin exists.
func (s *sqlxStore) EnsureInitialAdmin(ctx context.Context, seed AdminSeed) (bool, error) {
	if seed.Username == "" || seed.PasswordHash == "" {
		return false, fmt.Errorf("initial admin requires a username and password hash")
	}

	created := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var admins int
		if err := tx.GetContext(ctx, &admins, `SELECT COUNT(*) FROM accounts WHERE is_admin`); err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if admins > 0 {
			return nil
		}

		var secret sql.NullString
		if seed.TOTPSecret != "" {
			secret = sql.NullString{String: seed.TOTPSecret, Valid: true}
		}
		now := s.now()
		insert := tx.Rebind(`
            INSERT INTO accounts (external_id, username, first_name, last_name, is_admin, is_active,
                password_hash, totp_secret, created_at, updated_at)
            VALUES (NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        `)
		if _, err := tx.ExecContext(ctx, insert, seed.Username, "Admin", "User", true, true,
			seed.PasswordHash, secret, now, now); err != nil {
			s.logger.ErrorContext(ctx, "Error creating initial admin", "username", seed.Username, "error", err)
			return fmt.Errorf("failed to create initial admin: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		s.logger.InfoContext(ctx, "Created initial admin user", "username", seed.Username)
	}
	return created, nil
}
