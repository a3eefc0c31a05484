package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"soc-portal/internal/db"
	"soc-portal/internal/policy/domain"
)

const selectPolicy = `SELECT id, name, rules, enabled, created_at FROM access_policy`

type PostgresRepository struct {
	db db.DBTX
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository returns a policy store over conn. Works with both pgx and sqlite.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func (r *PostgresRepository) ListEnabled(ctx context.Context) ([]*domain.Policy, error) {
	return r.list(ctx, selectPolicy+` WHERE enabled = $1 ORDER BY name`, true)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Policy, error) {
	return r.list(ctx, selectPolicy+` ORDER BY name`)
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*domain.Policy, error) {
	var p domain.Policy
	err := r.db.QueryRowContext(ctx, selectPolicy+` WHERE name = $1`, name).
		Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Save assigns an ID to new policies. CreatedAt is kept from the first insert.
func (r *PostgresRepository) Save(ctx context.Context, p *domain.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO access_policy (id, name, rules, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET rules = excluded.rules, enabled = excluded.enabled`,
		p.ID, p.Name, p.Rules, p.Enabled, p.CreatedAt)
	return err
}

func (r *PostgresRepository) SetEnabled(ctx context.Context, name string, enabled bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE access_policy SET enabled = $1 WHERE name = $2`, enabled, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresRepository) list(ctx context.Context, q string, args ...any) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
