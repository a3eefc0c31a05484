// policy manages stored Rego policies. While any stored policy is enabled it replaces the built-in
// access policy on the next request.
//
//	policy -list
//	policy -name soc-strict -file strict.rego
//	policy -name soc-strict -disable
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"soc-portal/internal/config"
	"soc-portal/internal/db"
	"soc-portal/internal/policy/domain"
	"soc-portal/internal/policy/engine"
	policyrepo "soc-portal/internal/policy/repository"
)

func main() {
	list := flag.Bool("list", false, "list stored policies")
	name := flag.String("name", "", "policy name")
	file := flag.String("file", "", "Rego file to store under -name (enabled)")
	disable := flag.Bool("disable", false, "disable the policy named by -name")
	enable := flag.Bool("enable", false, "re-enable the policy named by -name")
	flag.Parse()

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
	policies := policyrepo.NewPostgresRepository(conn)

	switch {
	case *list:
		all, err := policies.List(ctx)
		if err != nil {
			log.Fatalf("list: %v", err)
		}
		for _, p := range all {
			state := "disabled"
			if p.Enabled {
				state = "enabled"
			}
			fmt.Printf("%s\t%s\t%s\n", p.Name, state, p.CreatedAt.Format(time.RFC3339))
		}
	case *name == "":
		log.Fatal("-name is required")
	case *file != "":
		rules, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("read %s: %v", *file, err)
		}
		if err := engine.Validate(ctx, string(rules)); err != nil {
			log.Fatalf("invalid policy: %v", err)
		}
		p := &domain.Policy{Name: *name, Rules: string(rules), Enabled: true, CreatedAt: time.Now().UTC()}
		if err := policies.Save(ctx, p); err != nil {
			log.Fatalf("save: %v", err)
		}
		log.Printf("Stored policy %q; it now replaces the built-in policy.", *name)
	case *disable || *enable:
		ok, err := policies.SetEnabled(ctx, *name, *enable)
		if err != nil {
			log.Fatalf("update: %v", err)
		}
		if !ok {
			log.Fatalf("no policy named %q", *name)
		}
		log.Printf("Policy %q enabled=%v.", *name, *enable)
	default:
		flag.Usage()
		os.Exit(2)
	}
}
