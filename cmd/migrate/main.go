// migrate applies the embedded schema: versioned golang-migrate steps on Postgres, the idempotent
// schema on SQLite. -direction version prints the applied Postgres version.
package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"soc-portal/internal/config"
	"soc-portal/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "up, down or version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	if *direction == "version" {
		version, dirty, err := migrate.Version(cfg.DatabaseDriver, cfg.DatabaseURL)
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Printf("migrate: no versioned migrations applied (%s)", cfg.DatabaseDriver)
		case err != nil:
			log.Fatalf("migrate: %v", err)
		default:
			log.Printf("migrate: version %d (dirty=%v)", version, dirty)
		}
		return
	}

	err = migrate.Run(context.Background(), cfg.DatabaseDriver, cfg.DatabaseURL, *direction)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("migrate: %s complete (%s)", *direction, cfg.DatabaseDriver)
}
