package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"soc-portal/internal/db"
	"soc-portal/internal/roster/domain"
)

const exchangeColumns = `id, roster_date, requester_id, peer_id, requester_shift, peer_shift, reason, created_at`

// PostgresRepository persists roster_schedule and shift_exchange rows.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a roster repository that uses the given db (pool or transaction).
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// WithTx returns a repository bound to tx.
func (r *PostgresRepository) WithTx(tx db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

// ListRange returns entries between from and to inclusive.
func (r *PostgresRepository) ListRange(ctx context.Context, from, to string) ([]*domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT roster_date, soc_portal_id, shift, updated_at FROM roster_schedule
		 WHERE roster_date >= $1 AND roster_date <= $2 ORDER BY roster_date, soc_portal_id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.Date, &e.SocPortalID, &e.Shift, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Get returns one roster cell, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Get(ctx context.Context, date, socPortalID string) (*domain.Entry, error) {
	var e domain.Entry
	err := r.db.QueryRowContext(ctx,
		`SELECT roster_date, soc_portal_id, shift, updated_at FROM roster_schedule WHERE roster_date = $1 AND soc_portal_id = $2`,
		date, socPortalID).Scan(&e.Date, &e.SocPortalID, &e.Shift, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Upsert inserts the cell or replaces its shift. UpdatedAt defaults to now.
func (r *PostgresRepository) Upsert(ctx context.Context, e *domain.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO roster_schedule (roster_date, soc_portal_id, shift, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (roster_date, soc_portal_id) DO UPDATE SET shift = excluded.shift, updated_at = excluded.updated_at`,
		e.Date, e.SocPortalID, e.Shift, e.UpdatedAt)
	return err
}

// CreateExchange inserts an exchange record. ID and CreatedAt are assigned when empty.
func (r *PostgresRepository) CreateExchange(ctx context.Context, x *domain.Exchange) error {
	if x.ID == "" {
		x.ID = uuid.New().String()
	}
	if x.CreatedAt.IsZero() {
		x.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shift_exchange (`+exchangeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		x.ID, x.Date, x.RequesterID, x.PeerID, x.RequesterShift, x.PeerShift, x.Reason, x.CreatedAt)
	return err
}

// ListExchanges returns exchanges the person took part in, newest first.
func (r *PostgresRepository) ListExchanges(ctx context.Context, socPortalID string, limit int) ([]*domain.Exchange, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+exchangeColumns+` FROM shift_exchange WHERE requester_id = $1 OR peer_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, socPortalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Exchange
	for rows.Next() {
		var x domain.Exchange
		if err := rows.Scan(&x.ID, &x.Date, &x.RequesterID, &x.PeerID, &x.RequesterShift, &x.PeerShift, &x.Reason, &x.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &x)
	}
	return out, rows.Err()
}
