package repository

import (
	"context"
	"testing"
	"time"

	"soc-portal/internal/db"
	"soc-portal/internal/downtime/domain"
)

var day = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

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

func seed(t *testing.T, r *PostgresRepository, category, service string, startOffset time.Duration, minutes int) {
	t.Helper()
	start := day.Add(startOffset)
	rep := &domain.Report{
		Category:        category,
		AffectedService: service,
		Start:           start,
		End:             start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		ReportedBy:      "U01SOCP",
	}
	if err := r.Create(context.Background(), rep); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rep.ID == "" {
		t.Fatal("Create should assign an ID")
	}
}

func TestSummary(t *testing.T) {
	r := newRepo(t)
	seed(t, r, "Network", "VPN", 2*time.Hour, 30)
	seed(t, r, "Network", "Mail", 26*time.Hour, 45)
	seed(t, r, "Power", "VPN", 50*time.Hour, 120)
	seed(t, r, "Power", "VPN", 40*24*time.Hour, 999) // outside the window

	ctx := context.Background()
	to := day.AddDate(0, 0, 7)
	byCat, err := r.Summary(ctx, day, to, domain.GroupByCategory)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(byCat) != 2 || byCat[0] != (domain.Group{Key: "Power", Count: 1, TotalMinutes: 120}) ||
		byCat[1] != (domain.Group{Key: "Network", Count: 2, TotalMinutes: 75}) {
		t.Errorf("by category = %+v", byCat)
	}

	bySvc, err := r.Summary(ctx, day, to, domain.GroupByService)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(bySvc) != 2 || bySvc[0] != (domain.Group{Key: "VPN", Count: 2, TotalMinutes: 150}) {
		t.Errorf("by service = %+v", bySvc)
	}

	if _, err := r.Summary(ctx, day, to, "reported_by; DROP TABLE downtime_report"); err == nil {
		t.Error("Summary should reject an unknown grouping")
	}
}

func TestSummary_Empty(t *testing.T) {
	r := newRepo(t)
	groups, err := r.Summary(context.Background(), day, day.AddDate(0, 0, 1), domain.GroupByCategory)
	if err != nil || len(groups) != 0 {
		t.Errorf("Summary = %v, %v", groups, err)
	}
}

func TestList(t *testing.T) {
	r := newRepo(t)
	seed(t, r, "Network", "VPN", time.Hour, 10)
	seed(t, r, "Power", "Mail", 3*time.Hour, 20)
	seed(t, r, "Power", "Mail", 48*time.Hour, 5)

	list, err := r.List(context.Background(), day, day.AddDate(0, 0, 1), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Category != "Power" || list[1].Category != "Network" {
		t.Fatalf("List = %+v", list)
	}
	if !list[1].Start.Equal(day.Add(time.Hour)) || list[1].DurationMinutes != 10 {
		t.Errorf("round trip = %+v", list[1])
	}
}
