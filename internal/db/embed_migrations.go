package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// MigrationFS embeds SQL migration files from internal/db/migrations.
// Used by the migrate runner (cmd/migrate) and by ApplySchema.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS

// ApplySchema executes every *.up.sql migration in version order on conn.
// It is meant for SQLite (local runs and repository tests) where golang-migrate's Postgres driver does not apply.
func ApplySchema(ctx context.Context, conn *sql.DB) error {
	entries, err := fs.Glob(MigrationFS, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(entries)
	for _, name := range entries {
		raw, err := MigrationFS.ReadFile(name)
		if err != nil {
			return err
		}
		for _, stmt := range strings.Split(string(raw), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
		}
	}
	return nil
}
