package repository

import (
	"context"
	"testing"

	"soc-portal/internal/db"
	"soc-portal/internal/identity/domain"
)

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

func seed(t *testing.T, r *PostgresRepository) {
	t.Helper()
	ctx := context.Background()
	if err := r.CreateAdmin(ctx, &domain.Identity{SocPortalID: "A01SOCP", Email: "boss@x.com", Role: domain.RoleSuperAdmin, PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if err := r.CreateUser(ctx, &domain.Identity{SocPortalID: "U01SOCP", Email: "a@x.com", FirstName: "Asha", Role: domain.RoleSOC, Phone: "01712345678", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	r := newRepo(t)
	seed(t, r)
	ctx := context.Background()

	u, err := r.GetUserByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u == nil {
		t.Fatal("user not found")
	}
	if u.Kind != domain.KindUser || u.SocPortalID != "U01SOCP" || u.Role != domain.RoleSOC || u.Status != domain.StatusActive {
		t.Errorf("unexpected user %+v", u)
	}
	if u.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	missing, err := r.GetUserByEmail(ctx, "nobody@x.com")
	if err != nil {
		t.Fatalf("GetUserByEmail missing: %v", err)
	}
	if missing != nil {
		t.Error("missing user should be nil")
	}
}

func TestGetAdminByEmail(t *testing.T) {
	r := newRepo(t)
	seed(t, r)
	a, err := r.GetAdminByEmail(context.Background(), "boss@x.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if a == nil || a.Kind != domain.KindAdmin || a.Role != domain.RoleSuperAdmin {
		t.Fatalf("unexpected admin %+v", a)
	}
}

func TestResolve_AdminFirst(t *testing.T) {
	r := newRepo(t)
	seed(t, r)
	ctx := context.Background()
	// Same email in both stores resolves to the admin.
	if err := r.CreateUser(ctx, &domain.Identity{SocPortalID: "U02SOCP", Email: "boss@x.com", Role: domain.RoleOPS, PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	got, err := Resolve(ctx, r, "boss@x.com")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got == nil || !got.IsAdmin() {
		t.Fatalf("Resolve = %+v, want admin", got)
	}

	got, err = Resolve(ctx, r, "a@x.com")
	if err != nil || got == nil || got.IsAdmin() {
		t.Fatalf("Resolve user = %+v, %v", got, err)
	}

	got, err = Resolve(ctx, r, "ghost@x.com")
	if err != nil || got != nil {
		t.Fatalf("Resolve missing = %+v, %v", got, err)
	}
}

func TestExistsUser(t *testing.T) {
	r := newRepo(t)
	seed(t, r)
	ctx := context.Background()
	for _, tc := range []struct {
		email, id string
		want      bool
	}{
		{"a@x.com", "NEW01SOCP", true},
		{"new@x.com", "U01SOCP", true},
		{"new@x.com", "U77SOCP", false},
		{"boss@x.com", "U77SOCP", true},
		{"new@x.com", "A01SOCP", true},
	} {
		got, err := r.ExistsUser(ctx, tc.email, tc.id)
		if err != nil {
			t.Fatalf("ExistsUser: %v", err)
		}
		if got != tc.want {
			t.Errorf("ExistsUser(%q, %q) = %v, want %v", tc.email, tc.id, got, tc.want)
		}
	}
}

func TestUpdateUserStatus(t *testing.T) {
	r := newRepo(t)
	seed(t, r)
	ctx := context.Background()
	ok, err := r.UpdateUserStatus(ctx, "U01SOCP", domain.StatusInactive)
	if err != nil || !ok {
		t.Fatalf("UpdateUserStatus = %v, %v", ok, err)
	}
	u, _ := r.GetUserByPortalID(ctx, "U01SOCP")
	if u.Status != domain.StatusInactive {
		t.Errorf("Status = %q, want Inactive", u.Status)
	}
	ok, err = r.UpdateUserStatus(ctx, "U99SOCP", domain.StatusActive)
	if err != nil || ok {
		t.Errorf("unknown user: ok=%v err=%v", ok, err)
	}
}

func TestUpdateProfilePhotoAndListAdmins(t *testing.T) {
	r := newRepo(t)
	seed(t, r)
	ctx := context.Background()
	if err := r.UpdateProfilePhoto(ctx, "U01SOCP", "/storage/profile_photos/U01SOCP.png"); err != nil {
		t.Fatalf("UpdateProfilePhoto: %v", err)
	}
	u, _ := r.GetUserByPortalID(ctx, "U01SOCP")
	if u.ProfilePhotoURL != "/storage/profile_photos/U01SOCP.png" {
		t.Errorf("ProfilePhotoURL = %q", u.ProfilePhotoURL)
	}
	admins, err := r.ListAdmins(ctx)
	if err != nil {
		t.Fatalf("ListAdmins: %v", err)
	}
	if len(admins) != 1 || admins[0].SocPortalID != "A01SOCP" {
		t.Errorf("ListAdmins = %+v", admins)
	}
}
