package client

import (
	"context"
	"errors"
	"sync"

	"soc-portal/internal/identity/domain"
)

// Client locations the guard and tracker navigate to.
const (
	LocationUnauthenticated = "/?redirect=unauthenticated"
	LocationExpired         = "/?expired=true"
	LocationAdminHome       = "/admin/dashboard"
	LocationUserHome        = "/user/dashboard"
)

var (
	// ErrAccessDenied is returned when the confirmed identity's role is not allowed on the view.
	ErrAccessDenied = errors.New("access denied")
	// ErrPending is returned by Render before Mount has confirmed the session.
	ErrPending = errors.New("authentication pending")
)

// Navigator moves the client to another location.
type Navigator interface {
	Navigate(location string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(location string)

func (f NavigatorFunc) Navigate(location string) { f(location) }

// Checker confirms the current session with the server gate.
type Checker interface {
	Check(ctx context.Context) (*CheckResult, error)
}

// GuardState is where a guarded view is in its mount.
type GuardState int

const (
	GuardPending GuardState = iota
	GuardAuthorized
	GuardDenied
	GuardUnauthenticated
)

// EffectiveRole is the role checked against a view's allow-list: "User" for every user account,
// the stored role for admins.
func EffectiveRole(userType, role string) string {
	if userType == string(domain.KindUser) {
		return domain.RoleUser
	}
	return role
}

// HomeFor returns the default location for userType.
func HomeFor(userType string) string {
	if userType == string(domain.KindAdmin) {
		return LocationAdminHome
	}
	return LocationUserHome
}

// Guard protects one view. The view is rendered only after the gate confirms the session and,
// when requiredRoles is non-empty, the effective role is in it. Toasts fire at most once per mount.
type Guard struct {
	checker       Checker
	nav           Navigator
	requiredRoles []string
	loading       func()

	mu     sync.Mutex
	state  GuardState
	result *CheckResult
	err    error

	deniedToast *Toast
	authToast   *Toast
}

// NewGuard returns a guard for a view allowed to requiredRoles (any authenticated identity when empty).
func NewGuard(checker Checker, nav Navigator, notifier Notifier, requiredRoles ...string) *Guard {
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &Guard{
		checker:       checker,
		nav:           nav,
		requiredRoles: requiredRoles,
		deniedToast:   NewToast(notifier),
		authToast:     NewToast(notifier),
	}
}

// OnLoading sets the function that shows the loading screen while the gate is consulted.
func (g *Guard) OnLoading(fn func()) { g.loading = fn }

// State returns the guard's state.
func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Mount starts a new mount: it shows the loading screen and calls the gate exactly once.
func (g *Guard) Mount(ctx context.Context) (*CheckResult, error) {
	g.mu.Lock()
	g.state, g.result, g.err = GuardPending, nil, nil
	g.mu.Unlock()
	g.deniedToast.Reset()
	g.authToast.Reset()

	if g.loading != nil {
		g.loading()
	}
	res, err := g.checker.Check(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.settle(GuardUnauthenticated, nil, err)
		g.unauthenticated(err)
		return nil, err
	}
	if !g.allowed(res) {
		g.settle(GuardDenied, res, ErrAccessDenied)
		g.deny(res)
		return res, ErrAccessDenied
	}
	g.settle(GuardAuthorized, res, nil)
	return res, nil
}

// Render calls view only when the mount is authorized. Repeated renders never repeat a toast.
func (g *Guard) Render(view func(*CheckResult) error) error {
	g.mu.Lock()
	state, res, err := g.state, g.result, g.err
	g.mu.Unlock()
	switch state {
	case GuardAuthorized:
		return view(res)
	case GuardDenied:
		g.deny(res)
		return ErrAccessDenied
	case GuardUnauthenticated:
		g.unauthenticated(err)
		return err
	default:
		return ErrPending
	}
}

// Unmount ends the mount. The next Mount starts with fresh toast channels.
func (g *Guard) Unmount() {
	g.mu.Lock()
	g.state, g.result, g.err = GuardPending, nil, nil
	g.mu.Unlock()
	g.deniedToast.Reset()
	g.authToast.Reset()
}

func (g *Guard) settle(state GuardState, res *CheckResult, err error) {
	g.mu.Lock()
	g.state, g.result, g.err = state, res, err
	g.mu.Unlock()
}

func (g *Guard) allowed(res *CheckResult) bool {
	if len(g.requiredRoles) == 0 {
		return true
	}
	role := EffectiveRole(res.UserType, res.Role)
	for _, r := range g.requiredRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (g *Guard) deny(res *CheckResult) {
	if g.deniedToast.Fire(LevelError, "Access denied: you do not have permission to view this page") {
		g.nav.Navigate(HomeFor(res.UserType))
	}
}

func (g *Guard) unauthenticated(err error) {
	if IsSessionExpired(err) {
		if g.authToast.Fire(LevelWarning, "Your session has expired. Please log in again.") {
			g.nav.Navigate(LocationExpired)
		}
		return
	}
	if g.authToast.Fire(LevelError, "Authentication required. Please log in.") {
		g.nav.Navigate(LocationUnauthenticated)
	}
}
