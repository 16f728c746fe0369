package solana_utils

import (
	"crypto/sha256"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Anchor instruction discriminators
func getDiscriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte(name))
	var disc [8]byte
	copy(disc[:], hash[:8])
	return disc
}

var (
	DepositForUsernameDisc     = getDiscriminator("global:deposit_for_username")
	ClaimDepositDisc           = getDiscriminator("global:claim_deposit")
	StoreDisc                  = getDiscriminator("global:store")
	VerifyTelegramInitDataDisc = getDiscriminator("global:verify_telegram_init_data")
)

type DepositForUsernameArgs struct {
	Username string
	Amount   uint64
}

type ClaimDepositArgs struct {
	Amount uint64
}

type StoreArgs struct {
	ValidationBytes []byte
}

func withDiscriminator(disc [8]byte, args any) ([]byte, error) {
	encoded, err := bin.MarshalBorsh(args)
	if err != nil {
		return nil, err
	}
	return append(disc[:], encoded...), nil
}

// BuildDepositForUsernameInstruction moves lamports from depositor into the vault and books
// them on the (depositor, username) deposit. payer covers rent of the PDAs on first use.
func BuildDepositForUsernameInstruction(programID, payer, depositor solana.PublicKey, username string, lamports uint64) (*solana.GenericInstruction, error) {
	programID = orDefault(programID, TransferProgramID)

	deposit, _, err := DeriveDeposit(depositor, username, programID)
	if err != nil {
		return nil, err
	}
	vault, _, err := DeriveVault(programID)
	if err != nil {
		return nil, err
	}

	data, err := withDiscriminator(DepositForUsernameDisc, &DepositForUsernameArgs{
		Username: username,
		Amount:   lamports,
	})
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(
		programID,
		solana.AccountMetaSlice{
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(depositor).WRITE().SIGNER(),
			solana.Meta(vault).WRITE(),
			solana.Meta(deposit).WRITE(),
			solana.Meta(solana.SystemProgramID),
		},
		data,
	), nil
}

// BuildClaimDepositInstruction pays lamports from the vault to recipient, charged to the
// deposit of (depositor, username). The recipient must own a verified session.
func BuildClaimDepositInstruction(programID, verificationProgramID, recipient, depositor solana.PublicKey, username string, lamports uint64) (*solana.GenericInstruction, error) {
	programID = orDefault(programID, TransferProgramID)

	deposit, _, err := DeriveDeposit(depositor, username, programID)
	if err != nil {
		return nil, err
	}
	vault, _, err := DeriveVault(programID)
	if err != nil {
		return nil, err
	}
	session, _, err := DeriveSession(recipient, verificationProgramID)
	if err != nil {
		return nil, err
	}

	data, err := withDiscriminator(ClaimDepositDisc, &ClaimDepositArgs{Amount: lamports})
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(
		programID,
		solana.AccountMetaSlice{
			solana.Meta(recipient).WRITE(),
			solana.Meta(vault).WRITE(),
			solana.Meta(deposit).WRITE(),
			solana.Meta(session),
			solana.Meta(solana.SystemProgramID),
		},
		data,
	), nil
}

func BuildStoreInstruction(verificationProgramID, payer, user solana.PublicKey, validationBytes []byte) (*solana.GenericInstruction, error) {
	verificationProgramID = orDefault(verificationProgramID, VerificationProgramID)

	session, _, err := DeriveSession(user, verificationProgramID)
	if err != nil {
		return nil, err
	}

	data, err := withDiscriminator(StoreDisc, &StoreArgs{ValidationBytes: validationBytes})
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(
		verificationProgramID,
		solana.AccountMetaSlice{
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(user).SIGNER(),
			solana.Meta(session).WRITE(),
			solana.Meta(solana.SystemProgramID),
		},
		data,
	), nil
}
