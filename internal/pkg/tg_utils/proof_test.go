package tg_utils

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingVerifier struct {
	calls int
	inner Verifier
}

func (v *countingVerifier) Verify(publicKey, message, signature []byte) bool {
	v.calls++
	return v.inner.Verify(publicKey, message, signature)
}

type panickingVerifier struct{}

func (panickingVerifier) Verify(publicKey, message, signature []byte) bool {
	panic("broken key material")
}

func newKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestAuthenticatorShortCircuits(t *testing.T) {
	pub, priv := newKey(t)
	message := []byte("123:WebAppData\nauth_date=1")
	signature := ed25519.Sign(priv, message)

	tests := []struct {
		name      string
		message   []byte
		signature []byte
	}{
		{"empty validation bytes", nil, signature},
		{"signature of 63 bytes", message, signature[:63]},
		{"signature of 65 bytes", message, append(append([]byte{}, signature...), 0)},
		{"empty signature", message, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &countingVerifier{inner: Ed25519}
			auth := NewAuthenticator([][]byte{pub}, verifier, nil)
			require.False(t, auth.Verify(tt.message, tt.signature))
			require.Empty(t, auth.Results(tt.message, tt.signature))
			require.Zero(t, verifier.calls)
		})
	}
}

func TestAuthenticatorVerify(t *testing.T) {
	trusted, trustedPriv := newKey(t)
	rotated, rotatedPriv := newKey(t)
	_, untrustedPriv := newKey(t)
	message := []byte("123:WebAppData\nauth_date=1\nuser={\"username\":\"alice_01\"}")

	auth := NewAuthenticator([][]byte{trusted, rotated}, nil, nil)

	require.True(t, auth.Verify(message, ed25519.Sign(trustedPriv, message)))
	require.True(t, auth.Verify(message, ed25519.Sign(rotatedPriv, message)))
	require.False(t, auth.Verify(message, ed25519.Sign(untrustedPriv, message)))

	tampered := append([]byte{}, message...)
	tampered[len(tampered)-3] = 'X'
	require.False(t, auth.Verify(tampered, ed25519.Sign(trustedPriv, message)))
}

func TestAuthenticatorSkipsMalformedKeys(t *testing.T) {
	pub, priv := newKey(t)
	message := []byte("payload")
	signature := ed25519.Sign(priv, message)

	verifier := &countingVerifier{inner: Ed25519}
	auth := NewAuthenticator([][]byte{pub[:31], {}, pub}, verifier, nil)

	require.True(t, auth.Verify(message, signature))
	require.Equal(t, 1, verifier.calls)

	results := auth.Results(message, signature)
	require.False(t, results[hex.EncodeToString(pub[:31])])
	require.True(t, results[hex.EncodeToString(pub)])
}

func TestAuthenticatorFailsClosedOnPanic(t *testing.T) {
	pub, priv := newKey(t)
	message := []byte("payload")

	auth := NewAuthenticator([][]byte{pub}, panickingVerifier{}, nil)
	require.NotPanics(t, func() {
		require.False(t, auth.Verify(message, ed25519.Sign(priv, message)))
	})
}

func TestAuthenticatorNoKeys(t *testing.T) {
	_, priv := newKey(t)
	message := []byte("payload")
	require.False(t, NewAuthenticator(nil, nil, nil).Verify(message, ed25519.Sign(priv, message)))
}

func TestPackageVerify(t *testing.T) {
	pub, priv := newKey(t)
	message := []byte("payload")
	require.True(t, Verify(message, ed25519.Sign(priv, message), [][]byte{{1, 2, 3}, pub}))
}

func TestParseTrustedKeys(t *testing.T) {
	keys, err := ParseTrustedKeys("")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, ProductionPublicKey, hex.EncodeToString(keys[0]))

	pub, _ := newKey(t)
	keys, err = ParseTrustedKeys(ProductionPublicKey + " , " + hex.EncodeToString(pub))
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, []byte(pub), keys[1])

	_, err = ParseTrustedKeys("zz")
	require.Error(t, err)
}
