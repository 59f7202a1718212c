package database

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const locationViewColumns = `lq.id, lq.account_id, lq.latitude, lq.longitude, lq.address, lq.query, lq.created_at,
        a.external_id AS owner_external_id, a.username AS owner_username,
        a.first_name AS owner_first_name, a.last_name AS owner_last_name`

// AppendLocationQuery inserts a new, immutable query row.
func (s *sqlxStore) AppendLocationQuery(ctx context.Context, q *LocationQuery) error {
	if q == nil {
		return fmt.Errorf("cannot save nil location query")
	}
	if q.AccountID == 0 {
		return fmt.Errorf("location query must have a non-zero account_id")
	}

	q.CreatedAt = s.now()
	query := s.db.Rebind(`
        INSERT INTO location_queries (account_id, latitude, longitude, address, query, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        RETURNING id
    `)
	err := s.db.QueryRowxContext(ctx, query,
		q.AccountID, q.Latitude, q.Longitude, q.Address, q.Query, q.CreatedAt).Scan(&q.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving location query", "account_id", q.AccountID, "error", err)
		return fmt.Errorf("failed to save location query for account %d: %w", q.AccountID, err)
	}

	s.logger.DebugContext(ctx, "Location query saved", "account_id", q.AccountID, "query_id", q.ID)
	return nil
}

// CountQueriesSince backs the daily quota.
func (s *sqlxStore) CountQueriesSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	var count int
	query := s.db.Rebind(`SELECT COUNT(*) FROM location_queries WHERE account_id = ? AND created_at >= ?`)
	if err := s.db.GetContext(ctx, &count, query, accountID, since.UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Error counting location queries", "account_id", accountID, "error", err)
		return 0, fmt.Errorf("failed to count location queries for account %d: %w", accountID, err)
	}
	return count, nil
}

// NearestLocationQueries uses the L1 metric on the stored text coordinates.
// Rows without coordinates, rows of excludeAccountID and rows of inactive owners are skipped.
func (s *sqlxStore) NearestLocationQueries(ctx context.Context, lat, lon float64, excludeAccountID int64, limit int) ([]NearbyRecord, error) {
	if limit <= 0 {
		limit = 1
	}

	query := s.db.Rebind(`
        SELECT ` + locationViewColumns + `,
            ABS(CAST(lq.latitude AS DOUBLE PRECISION) - ?) + ABS(CAST(lq.longitude AS DOUBLE PRECISION) - ?) AS distance
        FROM location_queries lq
        JOIN accounts a ON a.id = lq.account_id
        WHERE lq.latitude IS NOT NULL AND lq.longitude IS NOT NULL
            AND lq.latitude <> '' AND lq.longitude <> ''
            AND lq.account_id <> ?
            AND a.is_active
        ORDER BY distance ASC, lq.id DESC
        LIMIT ?
    `)

	var records []NearbyRecord
	err := s.db.SelectContext(ctx, &records, query, lat, lon, excludeAccountID, limit)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while searching nearest queries", "error", err)
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error searching nearest location queries", "error", err)
		return nil, fmt.Errorf("failed to search nearest location queries: %w", err)
	}
	return records, nil
}

// ListLocationQueries returns the newest queries first.
func (s *sqlxStore) ListLocationQueries(ctx context.Context, page Page) ([]LocationQueryView, int, error) {
	page = page.Normalize()

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM location_queries`); err != nil {
		s.logger.ErrorContext(ctx, "Error counting location queries", "error", err)
		return nil, 0, fmt.Errorf("failed to count location queries: %w", err)
	}

	var views []LocationQueryView
	query := s.db.Rebind(`
        SELECT ` + locationViewColumns + `
        FROM location_queries lq
        JOIN accounts a ON a.id = lq.account_id
        ORDER BY lq.id DESC
        LIMIT ? OFFSET ?
    `)
	if err := s.db.SelectContext(ctx, &views, query, page.Size, page.Offset()); err != nil {
		s.logger.ErrorContext(ctx, "Error listing location queries", "page", page.Number, "error", err)
		return nil, 0, fmt.Errorf("failed to list location queries: %w", err)
	}
	return views, total, nil
}
