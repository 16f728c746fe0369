package solana_utils

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/gagliardetto/solana-go"
	"github.com/sourcegraph/conc/iter"
)

var ErrSignerNotRequired = errors.New("wallet is not a required signer of the transaction")

// MessageSigner produces a raw ed25519 signature over serialized message bytes. It is the
// only capability an external signer (KMS, HSM, remote wallet) has to provide.
type MessageSigner interface {
	PublicKey() solana.PublicKey
	SignMessage(ctx context.Context, message []byte) (solana.Signature, error)
}

// Wallet is the signing surface used by the relay and the escrow ledger.
type Wallet interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
	SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error)
}

type localSigner struct {
	key solana.PrivateKey
}

func (s localSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

func (s localSigner) SignMessage(_ context.Context, message []byte) (solana.Signature, error) {
	return s.key.Sign(message)
}

type SigningWallet struct {
	signer MessageSigner
}

func NewWallet(signer MessageSigner) *SigningWallet {
	return &SigningWallet{signer}
}

func NewLocalWallet(key solana.PrivateKey) *SigningWallet {
	return NewWallet(localSigner{key})
}

func LocalWalletFromBase58(secret string) (*SigningWallet, error) {
	key, err := solana.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, errors.Wrap(err, "parse wallet secret")
	}
	return NewLocalWallet(key), nil
}

func (w *SigningWallet) PublicKey() solana.PublicKey {
	return w.signer.PublicKey()
}

// SignTransaction writes this wallet's signature into its slot and leaves every other
// signature untouched. Legacy and v0 messages are serialized by their own encoding before
// signing.
func (w *SigningWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	signers := SignerKeys(tx)
	idx := -1
	for i, key := range signers {
		if key.Equals(w.PublicKey()) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrSignerNotRequired
	}

	switch {
	case len(tx.Signatures) < len(signers):
		padded := make([]solana.Signature, len(signers))
		copy(padded, tx.Signatures)
		tx.Signatures = padded
	case len(tx.Signatures) > len(signers):
		return nil, fmt.Errorf("%w: %d signatures for %d signers", ErrBadTx, len(tx.Signatures), len(signers))
	}

	content, err := messageContent(tx)
	if err != nil {
		return nil, err
	}

	sig, err := w.signer.SignMessage(ctx, content)
	if err != nil {
		return nil, errors.Wrap(err, "sign message")
	}
	tx.Signatures[idx] = sig
	return tx, nil
}

// SignAllTransactions signs concurrently; the result keeps the input order.
func (w *SigningWallet) SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	return iter.MapErr(txs, func(tx **solana.Transaction) (*solana.Transaction, error) {
		return w.SignTransaction(ctx, *tx)
	})
}

func messageContent(tx *solana.Transaction) ([]byte, error) {
	content, err := tx.Message.MarshalBinary()
	if err != nil {
		if tx.Message.IsVersioned() {
			return nil, errors.Wrap(err, "encode v0 message")
		}
		return nil, errors.Wrap(err, "encode legacy message")
	}
	return content, nil
}
