package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"soc-portal/internal/audit/domain"
	"soc-portal/internal/db"
)

func TestCreateListCount(t *testing.T) {
	conn, err := db.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()
	if err := db.ApplySchema(ctx, conn); err != nil {
		t.Fatalf("ApplySchema: %v", err)
	}
	r := NewPostgresRepository(conn)

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := r.Create(ctx, &domain.ActivityLog{
			ID: fmt.Sprintf("a%d", i), SocPortalID: "U01SOCP", Action: "auth_check",
			Description: fmt.Sprintf("check %d", i), Severity: "INFO", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	n, err := r.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	logs, err := r.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(logs) != 2 || logs[0].ID != "a2" || logs[1].ID != "a1" {
		t.Fatalf("List order = %+v", logs)
	}
	if !logs[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt = %v", logs[0].CreatedAt)
	}
	page2, _ := r.List(ctx, 2, 2)
	if len(page2) != 1 || page2[0].ID != "a0" {
		t.Errorf("page 2 = %+v", page2)
	}
}
