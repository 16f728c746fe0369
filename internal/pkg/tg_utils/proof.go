package tg_utils

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

const (
	SignatureSize = ed25519.SignatureSize
	PublicKeySize = ed25519.PublicKeySize

	// ProductionPublicKey is the key Telegram signs third-party init data with.
	ProductionPublicKey = "e7bf03a2fa4602af4580703d88dda5bb59f32ed8b02a56c187fe7d34caed242d"
)

// Verifier is the raw signature primitive behind Authenticator.
type Verifier interface {
	Verify(publicKey, message, signature []byte) bool
}

type ed25519Verifier struct{}

func (ed25519Verifier) Verify(publicKey, message, signature []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

var Ed25519 Verifier = ed25519Verifier{}

// Authenticator checks envelopes against a fixed set of trusted keys. Any key may match,
// which lets an outgoing and an incoming key overlap during rotation.
type Authenticator struct {
	keys     [][]byte
	verifier Verifier
	logger   *zap.Logger
}

func NewAuthenticator(keys [][]byte, verifier Verifier, logger *zap.Logger) *Authenticator {
	if verifier == nil {
		verifier = Ed25519
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{keys, verifier, logger}
}

func (a *Authenticator) KeyCount() int {
	return len(a.keys)
}

// Verify reports whether signature over validationBytes was produced by any trusted key.
// Envelopes failing the length checks never reach the verifier.
func (a *Authenticator) Verify(validationBytes, signature []byte) bool {
	if !wellFormed(validationBytes, signature) {
		return false
	}
	for _, ok := range a.Results(validationBytes, signature) {
		if ok {
			return true
		}
	}
	return false
}

// Results maps each trusted key (hex) to its own verification outcome.
func (a *Authenticator) Results(validationBytes, signature []byte) map[string]bool {
	results := make(map[string]bool, len(a.keys))
	if !wellFormed(validationBytes, signature) {
		return results
	}
	for _, key := range a.keys {
		id := hex.EncodeToString(key)
		results[id] = results[id] || a.verifyKey(key, validationBytes, signature)
	}
	return results
}

func (a *Authenticator) verifyKey(key, message, signature []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Debug("trusted key verification panicked", zap.Any("recovered", r))
			ok = false
		}
	}()

	if len(key) != PublicKeySize {
		a.logger.Debug("skip trusted key with invalid length", zap.Int("length", len(key)))
		return false
	}
	return a.verifier.Verify(key, message, signature)
}

func wellFormed(validationBytes, signature []byte) bool {
	return len(validationBytes) > 0 && len(signature) == SignatureSize
}

// Verify checks an envelope against trustedKeys with ed25519.
func Verify(validationBytes, signature []byte, trustedKeys [][]byte) bool {
	return NewAuthenticator(trustedKeys, Ed25519, nil).Verify(validationBytes, signature)
}

// ParseTrustedKeys reads comma separated hex keys. An empty list selects ProductionPublicKey.
// Length is not checked here: keys of the wrong size are skipped at verification time.
func ParseTrustedKeys(raw string) ([][]byte, error) {
	var keys [][]byte
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, err := hex.DecodeString(item)
		if err != nil {
			return nil, errors.Wrapf(err, "trusted key %q", item)
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		key, _ := hex.DecodeString(ProductionPublicKey)
		keys = append(keys, key)
	}
	return keys, nil
}
