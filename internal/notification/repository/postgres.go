package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"soc-portal/internal/db"
	"soc-portal/internal/notification/domain"
)

// PostgresRepository persists notifications rows.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a notification repository that uses the given db (pool or transaction).
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// WithTx returns a repository bound to tx so notifications commit with the write that caused them.
func (r *PostgresRepository) WithTx(tx db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

// Create inserts n. ID and CreatedAt are assigned when empty.
func (r *PostgresRepository) Create(ctx context.Context, n *domain.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, title, message, is_read, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.RecipientID, n.Title, n.Message, n.Read, n.CreatedAt)
	return err
}

// visibility returns the recipient filter and its arguments starting at placeholder $1.
func visibility(recipientID string, admin bool) (string, []any) {
	if admin {
		return `(recipient_id = $1 OR recipient_id = $2)`, []any{recipientID, domain.RecipientAllAdmins}
	}
	return `recipient_id = $1`, []any{recipientID}
}

// ListFor returns visible notifications newest first.
func (r *PostgresRepository) ListFor(ctx context.Context, recipientID string, admin bool, limit int) ([]*domain.Notification, error) {
	where, args := visibility(recipientID, admin)
	args = append(args, limit)
	q := `SELECT id, recipient_id, title, message, is_read, created_at FROM notifications WHERE ` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args))
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkRead marks id read when visible to recipientID.
func (r *PostgresRepository) MarkRead(ctx context.Context, id, recipientID string, admin bool) (bool, error) {
	where, args := visibility(recipientID, admin)
	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE `+where+` AND id = $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UnreadCount returns the number of unread visible notifications.
func (r *PostgresRepository) UnreadCount(ctx context.Context, recipientID string, admin bool) (int, error) {
	where, args := visibility(recipientID, admin)
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE `+where+` AND is_read = FALSE`, args...).Scan(&n)
	return n, err
}
