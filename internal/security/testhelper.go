package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"time"
)

// Issuer and audience of signers built by NewTestSessionSigner.
const (
	TestIssuer   = "soc-portal-test"
	TestAudience = "soc-portal-test-web"
)

type testKeyPair struct {
	key        *ecdsa.PrivateKey
	privatePEM string
	publicPEM  string
}

// testKeys is generated once per process and shared by every test signer.
var testKeys = sync.OnceValues(func() (*testKeyPair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	pub, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		return nil, err
	}
	return &testKeyPair{
		key:        key,
		privatePEM: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: priv})),
		publicPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})),
	}, nil
})

// NewTestSessionSigner returns an ES256 SessionSigner on a per-process key. For tests only.
func NewTestSessionSigner() (*SessionSigner, error) {
	kp, err := testKeys()
	if err != nil {
		return nil, err
	}
	return NewSessionSigner(kp.key, kp.key.Public(), TestIssuer, TestAudience, time.Hour), nil
}
