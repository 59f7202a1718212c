package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when a requested account does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrBackupUnsupported is returned by Backup on non-SQLite stores.
	ErrBackupUnsupported = errors.New("backup is only supported for sqlite databases")
)

// Store defines the interface for database operations.
// Methods should accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetOrCreateAccount returns the account for the external profile, creating it
	// on first contact and refreshing changed non-empty profile fields otherwise.
	GetOrCreateAccount(ctx context.Context, profile ExternalProfile) (*Account, bool, error)

	// GetAccountByID, GetAccountByExternalID and GetAccountByUsername return
	// ErrNotFound when no account matches.
	GetAccountByID(ctx context.Context, id int64) (*Account, error)
	GetAccountByExternalID(ctx context.Context, externalID int64) (*Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)

	// ListAccounts returns a page of accounts, admins first, and the total count.
	ListAccounts(ctx context.Context, page Page) ([]Account, int, error)

	// PromoteAccount grants admin and stores totpSecret unless a secret already exists.
	PromoteAccount(ctx context.Context, id int64, totpSecret string) (*Account, error)
	SetAccountAdmin(ctx context.Context, id int64, isAdmin bool) (*Account, error)
	SetAccountActive(ctx context.Context, id int64, isActive bool) (*Account, error)

	// EnsureInitialAdmin creates the seed admin if no admin exists yet.
	EnsureInitialAdmin(ctx context.Context, seed AdminSeed) (bool, error)

	// AppendLocationQuery inserts a query row and sets its ID and CreatedAt.
	AppendLocationQuery(ctx context.Context, q *LocationQuery) error

	// CountQueriesSince counts an account's queries created at or after since.
	CountQueriesSince(ctx context.Context, accountID int64, since time.Time) (int, error)

	// NearestLocationQueries ranks coordinate-bearing queries of other active
	// accounts by |Δlat| + |Δlon|.
	NearestLocationQueries(ctx context.Context, lat, lon float64, excludeAccountID int64, limit int) ([]NearbyRecord, error)

	// ListLocationQueries returns a page of queries, newest first, and the total count.
	ListLocationQueries(ctx context.Context, page Page) ([]LocationQueryView, int, error)

	// GetStats counts accounts, admins and queries.
	GetStats(ctx context.Context) (*Stats, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// Backup writes a consistent copy of the database to destPath.
	Backup(ctx context.Context, destPath string) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db      *sqlx.DB
	dialect string
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dialect := DialectSQLite
	if db.DriverName() == "pgx" {
		dialect = DialectPostgres
	}
	return &sqlxStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With("component", "store"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, rolling back unless fn succeeds and the commit goes through.
func (s *sqlxStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

// GetStats counts accounts, admins and queries.
func (s *sqlxStore) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	query := `
        SELECT
            (SELECT COUNT(*) FROM accounts) AS accounts,
            (SELECT COUNT(*) FROM accounts WHERE is_admin) AS admins,
            (SELECT COUNT(*) FROM location_queries) AS queries
    `
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		s.logger.ErrorContext(ctx, "Error collecting stats", "error", err)
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return &stats, nil
}

// RunSQLMaintenance executes VACUUM, preceded by PRAGMA optimize on SQLite.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...", "dialect", s.dialect)

	if s.dialect == DialectSQLite {
		if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
			s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
		}
	}

	// VACUUM must run outside a transaction on both dialects
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

// Backup copies a SQLite database with VACUUM INTO. destPath must not exist.
func (s *sqlxStore) Backup(ctx context.Context, destPath string) error {
	if s.dialect != DialectSQLite {
		return ErrBackupUnsupported
	}
	if destPath == "" {
		return errors.New("backup destination cannot be empty")
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		s.logger.ErrorContext(ctx, "Database backup failed", "dest", destPath, "error", err)
		return fmt.Errorf("failed to back up database: %w", err)
	}

	s.logger.InfoContext(ctx, "Database backup written", "dest", destPath)
	return nil
}
