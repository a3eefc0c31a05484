// seed inserts development sample data: two admins, a handful of SOC users and a two-week roster.
// Idempotent: skips everything if the seed admin (admin@soc.local) already exists.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"soc-portal/internal/config"
	"soc-portal/internal/db"
	identitydomain "soc-portal/internal/identity/domain"
	identityrepo "soc-portal/internal/identity/repository"
	rosterdomain "soc-portal/internal/roster/domain"
	rosterrepo "soc-portal/internal/roster/repository"
	"soc-portal/internal/security"
)

const (
	seedAdminEmail = "admin@soc.local"
	seedPassword   = "password123"
	rosterDays     = 14
)

var admins = []identitydomain.Identity{
	{SocPortalID: "A01SOCP", Email: seedAdminEmail, FirstName: "Portal", LastName: "Owner", Role: identitydomain.RoleSuperAdmin},
	{SocPortalID: "A02SOCP", Email: "ops-admin@soc.local", FirstName: "Ops", LastName: "Admin", Role: identitydomain.RoleAdmin},
}

var users = []identitydomain.Identity{
	{SocPortalID: "U01SOCP", Email: "soc.lead@soc.local", FirstName: "Sam", LastName: "Lead", Role: identitydomain.RoleSOC},
	{SocPortalID: "U02SOCP", Email: "soc.analyst@soc.local", FirstName: "Ari", LastName: "Analyst", Role: identitydomain.RoleSOC},
	{SocPortalID: "U03SOCP", Email: "ops@soc.local", FirstName: "Oli", LastName: "Ops", Role: identitydomain.RoleOPS},
	{SocPortalID: "U04SOCP", Email: "intern@soc.local", FirstName: "Ira", LastName: "Intern", Role: identitydomain.RoleIntern},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	if cfg.DatabaseDriver == "sqlite" {
		if err := db.ApplySchema(ctx, conn); err != nil {
			log.Fatalf("db schema: %v", err)
		}
	}

	identities := identityrepo.NewPostgresRepository(conn)
	existing, err := identities.GetAdminByEmail(ctx, seedAdminEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", seedAdminEmail)
		os.Exit(0)
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash(seedPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	err = db.WithTx(ctx, conn, func(tx *sql.Tx) error {
		ids := identities.WithTx(tx)
		for _, a := range admins {
			a.Kind, a.Status, a.PasswordHash = identitydomain.KindAdmin, identitydomain.StatusActive, hash
			if err := ids.CreateAdmin(ctx, &a); err != nil {
				return fmt.Errorf("create admin %s: %w", a.Email, err)
			}
		}
		for _, u := range users {
			u.Kind, u.Status, u.PasswordHash = identitydomain.KindUser, identitydomain.StatusActive, hash
			if err := ids.CreateUser(ctx, &u); err != nil {
				return fmt.Errorf("create user %s: %w", u.Email, err)
			}
		}

		roster := rosterrepo.NewPostgresRepository(tx)
		rotation := []string{rosterdomain.ShiftMorning, rosterdomain.ShiftEvening, rosterdomain.ShiftNight, rosterdomain.ShiftOff}
		start := now.Truncate(24 * time.Hour)
		for day := 0; day < rosterDays; day++ {
			date := start.AddDate(0, 0, day).Format(rosterdomain.DateLayout)
			for i, u := range users {
				entry := &rosterdomain.Entry{Date: date, SocPortalID: u.SocPortalID, Shift: rotation[(day+i)%len(rotation)]}
				if err := roster.Upsert(ctx, entry); err != nil {
					return fmt.Errorf("roster %s %s: %w", date, u.SocPortalID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login: %s / %s\n", seedAdminEmail, seedPassword)
	fmt.Printf("User login: %s / %s\n", users[0].Email, seedPassword)
}
