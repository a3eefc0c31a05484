package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"soc-portal/internal/db"
	"soc-portal/internal/downtime/domain"
)

const reportColumns = `id, category, affected_service, impact_type, description, start_time, end_time, duration_minutes, reported_by, created_at`

// groupColumns maps a grouping key to its column. Only these names reach the query text.
var groupColumns = map[string]string{
	domain.GroupByCategory: "category",
	domain.GroupByService:  "affected_service",
}

// PostgresRepository persists downtime_report rows.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a downtime repository that uses the given db (pool or transaction).
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// WithTx returns a repository bound to tx.
func (r *PostgresRepository) WithTx(tx db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

// Create inserts rep. ID and CreatedAt are assigned when empty. The caller validates rep.
func (r *PostgresRepository) Create(ctx context.Context, rep *domain.Report) error {
	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO downtime_report (`+reportColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rep.ID, rep.Category, rep.AffectedService, rep.ImpactType, rep.Description,
		rep.Start.UTC(), rep.End.UTC(), rep.DurationMinutes, rep.ReportedBy, rep.CreatedAt)
	return err
}

func (r *PostgresRepository) List(ctx context.Context, from, to time.Time, limit int) ([]*domain.Report, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM downtime_report WHERE start_time >= $1 AND start_time < $2
		 ORDER BY start_time DESC, id DESC LIMIT $3`, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Report
	for rows.Next() {
		var rep domain.Report
		if err := rows.Scan(&rep.ID, &rep.Category, &rep.AffectedService, &rep.ImpactType, &rep.Description,
			&rep.Start, &rep.End, &rep.DurationMinutes, &rep.ReportedBy, &rep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rep)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Summary(ctx context.Context, from, to time.Time, groupBy string) ([]domain.Group, error) {
	col, ok := groupColumns[groupBy]
	if !ok {
		return nil, fmt.Errorf("unsupported grouping %q", groupBy)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+col+`, COUNT(*), COALESCE(SUM(duration_minutes), 0) FROM downtime_report
		 WHERE start_time >= $1 AND start_time < $2
		 GROUP BY `+col+` ORDER BY 3 DESC, 1 ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.Key, &g.Count, &g.TotalMinutes); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
