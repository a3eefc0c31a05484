package repository

import (
	"context"

	"soc-portal/internal/audit/domain"
	"soc-portal/internal/db"
)

const activityColumns = `id, soc_portal_id, email, eid, session_id, action, description, severity, ip_address, user_agent, created_at`

// PostgresRepository persists activity_log rows.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an activity log repository that uses the given db (pool or transaction).
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// WithTx returns a repository bound to tx.
func (r *PostgresRepository) WithTx(tx db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

// Create inserts one activity row. The caller sets ID and CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.ActivityLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_log (`+activityColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.SocPortalID, a.Email, a.EID, a.SessionID, a.Action, a.Description, a.Severity, a.IP, a.UserAgent, a.CreatedAt)
	return err
}

// List returns activity rows newest first.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*domain.ActivityLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activity_log ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.ActivityLog
	for rows.Next() {
		var a domain.ActivityLog
		if err := rows.Scan(&a.ID, &a.SocPortalID, &a.Email, &a.EID, &a.SessionID, &a.Action, &a.Description,
			&a.Severity, &a.IP, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Count returns the number of activity rows.
func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_log`).Scan(&n)
	return n, err
}
