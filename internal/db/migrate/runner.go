// Package migrate runs database migrations from embedded SQL files using golang-migrate.
package migrate

import (
	"context"
	"errors"
	"fmt"

	"soc-portal/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

// ErrNilVersion is returned by Version when no migration has been applied.
var ErrNilVersion = migrate.ErrNilVersion

// Run applies migrations in the given direction. direction must be "up" or "down".
// For driver "pgx" golang-migrate tracks versions in schema_migrations. For driver "sqlite" only "up" is
// supported and the embedded schema is applied directly (statements are idempotent).
func Run(ctx context.Context, driver, dsn, direction string) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	switch driver {
	case "sqlite":
		if direction == "down" {
			return errors.New("migrate: down is not supported for sqlite")
		}
		conn, err := db.Open(driver, dsn)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		defer conn.Close()
		return db.ApplySchema(ctx, conn)
	case "pgx":
	default:
		return fmt.Errorf("migrate: unsupported driver %q", driver)
	}

	m, err := newPostgres(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	}
	return nil
}

// Version reports the applied schema version of a Postgres database. SQLite schemas are not
// versioned and report ErrNilVersion.
func Version(driver, dsn string) (version uint, dirty bool, err error) {
	if driver != "pgx" {
		return 0, false, ErrNilVersion
	}
	m, err := newPostgres(dsn)
	if err != nil {
		return 0, false, err
	}
	defer func() { _, _ = m.Close() }()
	return m.Version()
}

func newPostgres(dsn string) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}
