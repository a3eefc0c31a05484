package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"soc-portal/internal/apperr"
	"soc-portal/internal/identity/domain"
	identityrepo "soc-portal/internal/identity/repository"
	"soc-portal/internal/security"
	"soc-portal/internal/session"
)

// Sentinel errors for the auth service; the handler maps them through apperr.
var (
	ErrMissingCredentials = apperr.Validation("Email and password are required")
	ErrInvalidCredentials = apperr.Unauthenticated("Invalid email or password")
	ErrAccountInactive    = apperr.Forbidden("Account inactive")
)

// PasswordVerifier checks a password against a stored hash.
type PasswordVerifier interface {
	Verify(hash, password string) error
}

// TokenIssuer signs session tokens. When nil, session ids are random UUIDs.
type TokenIssuer interface {
	Issue(email, socPortalID, eid, userType string) (token, sessionID string, expiresAt time.Time, err error)
}

// LoginResult is a successful login: the account and the session to hand to the client.
type LoginResult struct {
	Identity *domain.Identity
	Session  session.Session
	// SessionRef is the session id safe to log (the jti for signed tokens, a fingerprint otherwise).
	SessionRef string
}

// AuthService implements password login against the admin and user stores.
type AuthService struct {
	store  identityrepo.Lookup
	hasher PasswordVerifier
	issuer TokenIssuer
	now    func() time.Time
}

// NewAuthService returns an AuthService. issuer may be nil.
func NewAuthService(store identityrepo.Lookup, hasher PasswordVerifier, issuer TokenIssuer) *AuthService {
	return &AuthService{store: store, hasher: hasher, issuer: issuer, now: time.Now}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return domain.NormalizeEmail(email)
}

// Login resolves email (admin store first), verifies the password and requires an Active account.
// Unknown email and wrong password both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	ident, err := identityrepo.Resolve(ctx, s.store, email)
	if err != nil {
		return nil, apperr.System(fmt.Errorf("resolve identity: %w", err))
	}
	if ident == nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Verify(ident.PasswordHash, password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperr.System(fmt.Errorf("verify password: %w", err))
	}
	if !ident.IsActive() {
		return nil, ErrAccountInactive
	}

	now := s.now().UTC()
	eid := uuid.New().String()
	sess := session.Session{
		SocPortalID:  ident.SocPortalID,
		Email:        ident.Email,
		EID:          eid,
		Role:         domain.EffectiveRole(ident),
		UserType:     ident.UserType(),
		CreatedAt:    now,
		LastActivity: now,
	}
	ref := ""
	if s.issuer != nil {
		token, jti, _, err := s.issuer.Issue(ident.Email, ident.SocPortalID, eid, ident.UserType())
		if err != nil {
			return nil, apperr.System(fmt.Errorf("issue session token: %w", err))
		}
		sess.ID, ref = token, jti
	} else {
		sess.ID = uuid.New().String()
		ref = security.ShortFingerprint(sess.ID)
	}
	return &LoginResult{Identity: ident, Session: sess, SessionRef: ref}, nil
}
