package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

var (
	ErrInvalidKey  = errors.New("invalid key")
	ErrKeyMismatch = errors.New("session public key does not match private key")
)

// LoadPEM treats s as inline PEM when it starts with a BEGIN line, else as a file path.
// Inline PEM from an env var may carry literal "\n" sequences.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, ErrInvalidKey
	case strings.HasPrefix(s, "-----BEGIN"):
		return []byte(strings.ReplaceAll(s, `\n`, "\n")), nil
	default:
		return os.ReadFile(s)
	}
}

func decodePEM(s string) (*pem.Block, error) {
	raw, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, ErrInvalidKey
	}
	return block, nil
}

// ParsePrivateKey accepts PKCS#1 RSA, SEC 1 EC and PKCS#8 keys.
func ParsePrivateKey(s string) (crypto.Signer, error) {
	block, err := decodePEM(s)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if signer, ok := key.(crypto.Signer); ok {
			return signer, nil
		}
	}
	return nil, ErrInvalidKey
}

// ParsePublicKey accepts PKIX and PKCS#1 RSA public keys.
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	block, err := decodePEM(s)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}
	return nil, ErrInvalidKey
}

// KeyAlg is the JWS algorithm for pub: RS256 for RSA, ES256 for P-256, empty for anything else.
func KeyAlg(pub crypto.PublicKey) string {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return "RS256"
	case *ecdsa.PublicKey:
		if k.Curve == elliptic.P256() {
			return "ES256"
		}
	}
	return ""
}

type equalKey interface {
	Equal(crypto.PublicKey) bool
}

// LoadSessionSigner builds the signer from JWT_PRIVATE_KEY and JWT_PUBLIC_KEY (inline PEM or paths).
// With neither set it generates an ephemeral P-256 pair, so sessions do not survive a restart.
// Setting only one of them, or a pair that does not match, is an error.
func LoadSessionSigner(privatePEM, publicPEM, issuer, audience string, ttl time.Duration) (signer *SessionSigner, ephemeral bool, err error) {
	if privatePEM == "" && publicPEM == "" {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, false, fmt.Errorf("generate session key: %w", err)
		}
		return NewSessionSigner(key, key.Public(), issuer, audience, ttl), true, nil
	}
	priv, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return nil, false, fmt.Errorf("session private key: %w", err)
	}
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return nil, false, fmt.Errorf("session public key: %w", err)
	}
	if KeyAlg(pub) == "" {
		return nil, false, fmt.Errorf("session public key: %w", ErrInvalidKey)
	}
	if k, ok := priv.Public().(equalKey); !ok || !k.Equal(pub) {
		return nil, false, ErrKeyMismatch
	}
	return NewSessionSigner(priv, pub, issuer, audience, ttl), false, nil
}
