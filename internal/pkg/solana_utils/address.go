package solana_utils

import (
	"regexp"

	"github.com/go-faster/errors"

	"github.com/gagliardetto/solana-go"
)

var (
	TransferProgramID     = solana.MustPublicKeyFromBase58("4ewpzEPF5xrVAHeRkoe7XS1yKFGQBekD7PgFwEz9SaxY")
	VerificationProgramID = solana.MustPublicKeyFromBase58("9yiphKYd4b69tR1ZPP8rNwtMeUwWgjYXaXdEzyNziNhz")

	depositPrefix = []byte("deposit")
	vaultPrefix   = []byte("vault")
	sessionPrefix = []byte("tg_session")
)

// Telegram usernames are ASCII, so the UTF-8 seed never exceeds solana.MaxSeedLength.
var reUsername = regexp.MustCompile(`^[A-Za-z0-9_]{5,32}$`)

var (
	ErrInvalidUsername = errors.New("invalid telegram username")
	ErrInvalidOwner    = errors.New("invalid owner public key")
)

func ValidateUsername(username string) error {
	if !reUsername.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// DeriveDeposit returns the deposit account of (owner, username) and its bump.
// A zero programID selects TransferProgramID.
func DeriveDeposit(owner solana.PublicKey, username string, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	if owner.IsZero() {
		return solana.PublicKey{}, 0, ErrInvalidOwner
	}
	if err := ValidateUsername(username); err != nil {
		return solana.PublicKey{}, 0, err
	}

	return solana.FindProgramAddress(
		[][]byte{
			depositPrefix,
			owner.Bytes(),
			[]byte(username),
		},
		orDefault(programID, TransferProgramID),
	)
}

func DeriveVault(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			vaultPrefix,
		},
		orDefault(programID, TransferProgramID),
	)
}

func DeriveSession(user solana.PublicKey, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			sessionPrefix,
			user.Bytes(),
		},
		orDefault(programID, VerificationProgramID),
	)
}

func orDefault(programID, fallback solana.PublicKey) solana.PublicKey {
	if programID.IsZero() {
		return fallback
	}
	return programID
}
