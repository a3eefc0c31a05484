package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is bcrypt's input limit. Longer passwords are rejected instead of truncated.
const MaxPasswordBytes = 72

var (
	ErrPasswordMismatch = errors.New("password mismatch")
	ErrPasswordEmpty    = errors.New("password is empty")
	ErrPasswordTooLong  = errors.New("password exceeds 72 bytes")
)

// Hasher hashes account passwords with bcrypt.
type Hasher struct {
	Cost int
}

// NewHasher clamps cost to bcrypt's range; zero or negative selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		return &Hasher{Cost: bcrypt.DefaultCost}
	}
	return &Hasher{Cost: min(max(cost, bcrypt.MinCost), bcrypt.MaxCost)}
}

func (h *Hasher) Hash(password string) (string, error) {
	switch {
	case password == "":
		return "", ErrPasswordEmpty
	case len(password) > MaxPasswordBytes:
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	return string(b), err
}

// Verify returns ErrPasswordMismatch for a wrong password and the bcrypt error for a corrupt hash.
func (h *Hasher) Verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
