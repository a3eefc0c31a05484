package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
)

// SessionClaims holds the JWT claims carried in the sessionId cookie.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	SocPortalID string `json:"soc_portal_id"`
	EID         string `json:"eid"`
	UserType    string `json:"user_type"`
}

// SessionID returns the jti, which is the opaque session identifier.
func (c *SessionClaims) SessionID() string { return c.ID }

// SessionSigner issues and verifies signed session tokens using RS256 or ES256 (private/public key).
type SessionSigner struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	ttl        time.Duration
}

// NewSessionSigner returns a SessionSigner that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on Verify. ttl is the absolute token lifetime;
// idle expiry is enforced separately through lastActivity.
func NewSessionSigner(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) *SessionSigner {
	return &SessionSigner{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
	}
}

// Issue signs a session token for the given identity. Returns the token, the session id (jti)
// and expiration time.
func (s *SessionSigner) Issue(email, socPortalID, eid, userType string) (token, sessionID string, expiresAt time.Time, err error) {
	sessionID, err = NewSessionID()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(s.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   socPortalID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:       email,
		SocPortalID: socPortalID,
		EID:         eid,
		UserType:    userType,
	}
	token, err = s.sign(claims)
	return token, sessionID, expiresAt, err
}

func (s *SessionSigner) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch s.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(s.privateKey)
}

// Verify parses and validates the session token (signature, exp, iss, aud) and returns its claims.
func (s *SessionSigner) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return s.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return s.publicKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != s.issuer {
		return nil, ErrInvalidToken
	}
	if !slices.Contains(claims.Audience, s.audience) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NewSessionID returns a random 128-bit hex identifier.
func NewSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
