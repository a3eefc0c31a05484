package repository

import (
	"context"
	"testing"
	"time"

	"soc-portal/internal/db"
	"soc-portal/internal/policy/domain"
)

const rules = "package socportal.access\n\ndefault allow := false\n"

func newRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	conn, err := db.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.ApplySchema(context.Background(), conn); err != nil {
		t.Fatalf("ApplySchema: %v", err)
	}
	return NewPostgresRepository(conn)
}

func TestSave_ListEnabled(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	for _, p := range []*domain.Policy{
		{Name: "strict", Rules: rules, Enabled: false, CreatedAt: now},
		{Name: "open", Rules: rules, Enabled: true, CreatedAt: now},
	} {
		if err := r.Save(ctx, p); err != nil {
			t.Fatalf("Save %s: %v", p.Name, err)
		}
		if p.ID == "" {
			t.Errorf("Save %s did not assign an ID", p.Name)
		}
	}

	all, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].Name != "open" || all[1].Name != "strict" {
		t.Fatalf("List = %+v", all)
	}
	enabled, err := r.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("ListEnabled: %v", err)
	}
	if len(enabled) != 1 || enabled[0].Name != "open" {
		t.Errorf("ListEnabled = %+v", enabled)
	}
}

func TestSave_ReplacesByName(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	first := &domain.Policy{Name: "soc", Rules: rules, Enabled: true, CreatedAt: time.Now().UTC()}
	if err := r.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	updated := rules + "\nallow if input.role == \"Admin\"\n"
	if err := r.Save(ctx, &domain.Policy{Name: "soc", Rules: updated, Enabled: false, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	got, err := r.GetByName(ctx, "soc")
	if err != nil || got == nil {
		t.Fatalf("GetByName = %v, %v", got, err)
	}
	if got.ID != first.ID {
		t.Errorf("ID = %q, want original %q", got.ID, first.ID)
	}
	if got.Rules != updated || got.Enabled {
		t.Errorf("policy not replaced: %+v", got)
	}
}

func TestSave_Validation(t *testing.T) {
	r := newRepo(t)
	if err := r.Save(context.Background(), &domain.Policy{Name: "empty"}); err == nil {
		t.Fatal("Save without rules should fail")
	}
}

func TestGetByName_NotFound(t *testing.T) {
	r := newRepo(t)
	p, err := r.GetByName(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if p != nil {
		t.Errorf("GetByName = %+v, want nil", p)
	}
}

func TestSetEnabled(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	if err := r.Save(ctx, &domain.Policy{Name: "soc", Rules: rules, Enabled: true, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ok, err := r.SetEnabled(ctx, "soc", false)
	if err != nil || !ok {
		t.Fatalf("SetEnabled = %v, %v", ok, err)
	}
	enabled, _ := r.ListEnabled(ctx)
	if len(enabled) != 0 {
		t.Errorf("ListEnabled = %+v, want none", enabled)
	}
	ok, err = r.SetEnabled(ctx, "missing", true)
	if err != nil || ok {
		t.Errorf("SetEnabled(missing) = %v, %v; want false, nil", ok, err)
	}
}
