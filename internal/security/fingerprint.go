package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Fingerprint returns a hex-encoded SHA-256 of s. Used wherever a session token would otherwise be
// stored or logged verbatim (recent-check cache keys, activity rows).
func Fingerprint(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// ShortFingerprint is the first 16 hex characters of Fingerprint, enough to correlate log lines.
func ShortFingerprint(s string) string {
	if s == "" {
		return ""
	}
	return Fingerprint(s)[:16]
}

// FingerprintEqual reports in constant time whether s hashes to fingerprint.
func FingerprintEqual(s, fingerprint string) bool {
	return subtle.ConstantTimeCompare([]byte(Fingerprint(s)), []byte(fingerprint)) == 1
}
