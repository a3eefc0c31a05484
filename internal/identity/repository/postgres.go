package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"soc-portal/internal/db"
	"soc-portal/internal/identity/domain"
)

const (
	adminColumns = `soc_portal_id, email, first_name, last_name, role_type, status, password_hash, created_at`
	userColumns  = `soc_portal_id, email, first_name, last_name, phone, role_type, status, password_hash, profile_photo_url, created_at, updated_at`
)

// PostgresRepository reads admin_info and user_info. The SQL is portable so it also runs on SQLite.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an identity repository that uses the given db (pool or transaction) for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// WithTx returns a repository bound to tx.
func (r *PostgresRepository) WithTx(tx db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

// GetAdminByEmail returns the admin with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetAdminByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admin_info WHERE email = $1`, email)
	i, err := scanAdmin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return i, err
}

// GetUserByEmail returns the user with the given email, or nil if not found.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM user_info WHERE email = $1`, email)
	i, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return i, err
}

// GetUserByPortalID returns the user with the given portal id, or nil if not found.
func (r *PostgresRepository) GetUserByPortalID(ctx context.Context, socPortalID string) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM user_info WHERE soc_portal_id = $1`, socPortalID)
	i, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return i, err
}

// ExistsUser reports whether any account, admin or user, already holds email or socPortalID.
func (r *PostgresRepository) ExistsUser(ctx context.Context, email, socPortalID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM admin_info WHERE email = $1 OR soc_portal_id = $2)
		      + (SELECT COUNT(*) FROM user_info WHERE email = $1 OR soc_portal_id = $2)`,
		email, socPortalID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateUser inserts a user row. CreatedAt and UpdatedAt default to now when zero.
func (r *PostgresRepository) CreateUser(ctx context.Context, i *domain.Identity) error {
	if err := i.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC().Truncate(time.Second)
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	if i.UpdatedAt.IsZero() {
		i.UpdatedAt = i.CreatedAt
	}
	i.Kind = domain.KindUser
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_info (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		i.SocPortalID, i.Email, i.FirstName, i.LastName, i.Phone, i.Role, string(i.Status),
		i.PasswordHash, i.ProfilePhotoURL, i.CreatedAt, i.UpdatedAt)
	return err
}

// CreateAdmin inserts an admin row. Used by the seed command.
func (r *PostgresRepository) CreateAdmin(ctx context.Context, i *domain.Identity) error {
	if err := i.Validate(); err != nil {
		return err
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	i.Kind = domain.KindAdmin
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_info (`+adminColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		i.SocPortalID, i.Email, i.FirstName, i.LastName, i.Role, string(i.Status), i.PasswordHash, i.CreatedAt)
	return err
}

// UpdateUserStatus sets the status of a user. Returns false when no user has socPortalID.
func (r *PostgresRepository) UpdateUserStatus(ctx context.Context, socPortalID string, status domain.Status) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_info SET status = $1, updated_at = $2 WHERE soc_portal_id = $3`,
		string(status), time.Now().UTC().Truncate(time.Second), socPortalID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateProfilePhoto stores the profile photo URL of a user.
func (r *PostgresRepository) UpdateProfilePhoto(ctx context.Context, socPortalID, url string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_info SET profile_photo_url = $1, updated_at = $2 WHERE soc_portal_id = $3`,
		url, time.Now().UTC().Truncate(time.Second), socPortalID)
	return err
}

// ListAdmins returns every admin ordered by portal id.
func (r *PostgresRepository) ListAdmins(ctx context.Context) ([]*domain.Identity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+adminColumns+` FROM admin_info ORDER BY soc_portal_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Identity
	for rows.Next() {
		i, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAdmin(s scanner) (*domain.Identity, error) {
	var (
		i      domain.Identity
		status string
	)
	if err := s.Scan(&i.SocPortalID, &i.Email, &i.FirstName, &i.LastName, &i.Role, &status, &i.PasswordHash, &i.CreatedAt); err != nil {
		return nil, err
	}
	i.Kind = domain.KindAdmin
	i.Status = domain.Status(status)
	i.UpdatedAt = i.CreatedAt
	return &i, nil
}

func scanUser(s scanner) (*domain.Identity, error) {
	var (
		i      domain.Identity
		status string
	)
	if err := s.Scan(&i.SocPortalID, &i.Email, &i.FirstName, &i.LastName, &i.Phone, &i.Role, &status,
		&i.PasswordHash, &i.ProfilePhotoURL, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	i.Kind = domain.KindUser
	i.Status = domain.Status(status)
	return &i, nil
}
