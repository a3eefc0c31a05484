package engine

import (
	"context"
	"errors"
	"testing"

	"soc-portal/internal/policy/domain"
)

type mockSource struct {
	policies []*domain.Policy
	err      error
	calls    int
}

func (m *mockSource) ListEnabled(context.Context) ([]*domain.Policy, error) {
	m.calls++
	return m.policies, m.err
}

func newEvaluator(t *testing.T, source PolicySource) *OPAEvaluator {
	t.Helper()
	e, err := NewOPAEvaluator(context.Background(), source, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	return e
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e := newEvaluator(t, nil)
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_DefaultPolicy(t *testing.T) {
	e := newEvaluator(t, nil)
	admin := func(role, res string) Input {
		return Input{Role: role, StoredRole: role, UserType: "admin", Resource: res}
	}
	user := func(stored, res string) Input {
		return Input{Role: "User", StoredRole: stored, UserType: "user", Resource: res}
	}

	tests := []struct {
		name string
		in   Input
		want bool
	}{
		{"super admin users", admin("Super Admin", ResourceAdminUsers), true},
		{"admin activity", admin("Admin", ResourceAdminActivity), true},
		{"admin roster upload", admin("Admin", ResourceRosterUpload), true},
		{"unknown admin role", admin("Auditor", ResourceRosterRead), false},
		{"user roster read", user("OPS", ResourceRosterRead), true},
		{"user shift exchange", user("INTERN", ResourceShiftExchange), true},
		{"user downtime report", user("OPS", ResourceDowntimeReport), true},
		{"user downtime read", user("CTO", ResourceDowntimeRead), true},
		{"user notifications", user("SOC", ResourceNotifications), true},
		{"user profile", user("SOC", ResourceProfile), true},
		{"user admin users", user("SOC", ResourceAdminUsers), false},
		{"user activity logs", user("CTO", ResourceAdminActivity), false},
		{"soc roster upload", user("SOC", ResourceRosterUpload), true},
		{"ops roster upload", user("OPS", ResourceRosterUpload), false},
		{"no user type", Input{Role: "Admin", Resource: ResourceRosterRead}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Allow(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if got != tt.want {
				t.Errorf("Allow(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOPAEvaluator_StoredPolicyReplacesDefault(t *testing.T) {
	src := &mockSource{policies: []*domain.Policy{{
		ID: "p1", Name: "lockdown", Enabled: true,
		Rules: "package socportal.access\n\ndefault allow := false\n\nallow if input.role == \"Super Admin\"\n",
	}}}
	e := newEvaluator(t, src)
	ctx := context.Background()

	ok, err := e.Allow(ctx, Input{Role: "Admin", UserType: "admin", Resource: ResourceAdminUsers})
	if err != nil || ok {
		t.Errorf("Admin under lockdown = %v, %v; want false", ok, err)
	}
	ok, err = e.Allow(ctx, Input{Role: "Super Admin", UserType: "admin", Resource: ResourceAdminUsers})
	if err != nil || !ok {
		t.Errorf("Super Admin under lockdown = %v, %v; want true", ok, err)
	}
}

func TestOPAEvaluator_BrokenStoredPolicyFallsBack(t *testing.T) {
	src := &mockSource{policies: []*domain.Policy{{ID: "p1", Name: "broken", Enabled: true, Rules: "package socportal.access\nallow if {"}}}
	e := newEvaluator(t, src)
	ok, err := e.Allow(context.Background(), Input{Role: "User", StoredRole: "OPS", UserType: "user", Resource: ResourceRosterRead})
	if err != nil || !ok {
		t.Errorf("Allow = %v, %v; want default decision true", ok, err)
	}
}

func TestOPAEvaluator_SourceErrorFallsBack(t *testing.T) {
	src := &mockSource{err: errors.New("db down")}
	e := newEvaluator(t, src)
	ok, err := e.Allow(context.Background(), Input{Role: "User", StoredRole: "OPS", UserType: "user", Resource: ResourceAdminUsers})
	if err != nil || ok {
		t.Errorf("Allow = %v, %v; want default deny", ok, err)
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1", src.calls)
	}
}

func TestOPAEvaluator_DisabledStoredPolicyIgnored(t *testing.T) {
	src := &mockSource{policies: []*domain.Policy{{ID: "p1", Name: "off", Enabled: false, Rules: "package socportal.access\n\nallow := true\n"}}}
	e := newEvaluator(t, src)
	ok, _ := e.Allow(context.Background(), Input{Role: "User", UserType: "user", Resource: ResourceAdminUsers})
	if ok {
		t.Error("disabled policy must not apply")
	}
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	if err := Validate(ctx, "package socportal.access\n\ndefault allow := false\n"); err != nil {
		t.Errorf("Validate(valid) = %v", err)
	}
	if err := Validate(ctx, "package socportal.access\nallow if {"); err == nil {
		t.Error("Validate should reject a syntax error")
	}
	if err := Validate(ctx, "package other\n\nallow := true\n"); err == nil {
		t.Error("Validate should reject a policy outside socportal.access")
	}
}
