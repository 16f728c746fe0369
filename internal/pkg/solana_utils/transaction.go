package solana_utils

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/go-faster/errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

var (
	ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
	Ed25519ProgramID       = solana.MustPublicKeyFromBase58("Ed25519SigVerify111111111111111111111111111")
)

const (
	computeBudgetSetUnitPrice = 3

	IntentSystemTransfer = "system_transfer"
	IntentClaimDeposit   = "claim_deposit"
)

var (
	ErrBadTx               = errors.New("malformed transaction")
	ErrFeePayerMismatch    = errors.New("transaction fee payer must be the relay payer")
	ErrMissingBlockhash    = errors.New("transaction blockhash is missing")
	ErrUnexpectedProgram   = errors.New("transaction invokes an unexpected program")
	ErrUnexpectedIx        = errors.New("transaction contains an unexpected instruction")
	ErrFeePayerDrain       = errors.New("transaction moves funds out of the relay payer")
	ErrTransferCount       = errors.New("transaction must contain exactly one transfer")
	ErrComputePriceTooHigh = errors.New("compute unit price exceeds relay limit")
	ErrMissingSignature    = errors.New("missing user signature on transaction")
	ErrInvalidSignature    = errors.New("invalid user signature")
)

func DecodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(ErrBadTx, err.Error())
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, errors.Wrap(ErrBadTx, err.Error())
	}
	return tx, nil
}

func EncodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// SignerKeys returns the account keys whose signatures the message requires, fee payer first.
func SignerKeys(tx *solana.Transaction) []solana.PublicKey {
	n := int(tx.Message.Header.NumRequiredSignatures)
	if n > len(tx.Message.AccountKeys) {
		n = len(tx.Message.AccountKeys)
	}
	return tx.Message.AccountKeys[:n]
}

// TransferIntent is the single value-moving instruction found in a relayed transaction.
// Sender is empty for claims: the deposit address binds the depositor instead.
type TransferIntent struct {
	Kind      string
	Sender    solana.PublicKey
	Recipient solana.PublicKey
	Deposit   solana.PublicKey
	Vault     solana.PublicKey
	Lamports  uint64
}

// Authority is the account whose signature authorizes the movement: the sender of a
// transfer, the recipient of a claim.
func (i *TransferIntent) Authority() solana.PublicKey {
	if i.Kind == IntentClaimDeposit {
		return i.Recipient
	}
	return i.Sender
}

type RelayPolicy struct {
	FeePayer              solana.PublicKey
	TransferProgramID     solana.PublicKey
	VerificationProgramID solana.PublicKey
	MaxComputeUnitPrice   uint64
}

// Inspect checks tx against the relay policy and returns its transfer intent.
func (p RelayPolicy) Inspect(tx *solana.Transaction) (*TransferIntent, error) {
	msg := &tx.Message
	if len(msg.AccountKeys) == 0 || msg.Header.NumRequiredSignatures == 0 {
		return nil, ErrBadTx
	}
	if !msg.AccountKeys[0].Equals(p.FeePayer) {
		return nil, ErrFeePayerMismatch
	}
	if msg.RecentBlockhash == (solana.Hash{}) {
		return nil, ErrMissingBlockhash
	}

	transferProgram := orDefault(p.TransferProgramID, TransferProgramID)
	verificationProgram := orDefault(p.VerificationProgramID, VerificationProgramID)

	var intents []*TransferIntent
	for i, ix := range msg.Instructions {
		programID, err := staticKey(msg, ix.ProgramIDIndex)
		if err != nil {
			return nil, err
		}
		accounts := make([]solana.PublicKey, len(ix.Accounts))
		for j, idx := range ix.Accounts {
			if accounts[j], err = staticKey(msg, idx); err != nil {
				return nil, err
			}
		}

		switch {
		case programID.Equals(ComputeBudgetProgramID):
			if err := p.checkComputeBudget(ix.Data); err != nil {
				return nil, err
			}
		case programID.Equals(Ed25519ProgramID):
		case programID.Equals(verificationProgram):
			if !hasDiscriminator(ix.Data, StoreDisc) && !hasDiscriminator(ix.Data, VerifyTelegramInitDataDisc) {
				return nil, fmt.Errorf("%w: verification instruction %d", ErrUnexpectedIx, i)
			}
		case programID.Equals(solana.SystemProgramID):
			intent, err := decodeSystemTransfer(accounts, ix.Data)
			if err != nil {
				return nil, fmt.Errorf("%w: system instruction %d", err, i)
			}
			if intent.Sender.Equals(p.FeePayer) {
				return nil, ErrFeePayerDrain
			}
			intents = append(intents, intent)
		case programID.Equals(transferProgram):
			intent, err := decodeClaimDeposit(accounts, ix.Data)
			if err != nil {
				return nil, fmt.Errorf("%w: transfer instruction %d", err, i)
			}
			if intent.Recipient.Equals(p.FeePayer) {
				return nil, ErrFeePayerDrain
			}
			intents = append(intents, intent)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedProgram, programID)
		}
	}

	if len(intents) != 1 {
		return nil, ErrTransferCount
	}
	return intents[0], nil
}

// VerifyUserSignatures requires a valid signature from every signer except skip.
func VerifyUserSignatures(tx *solana.Transaction, skip solana.PublicKey) error {
	content, err := tx.Message.MarshalBinary()
	if err != nil {
		return errors.Wrap(ErrBadTx, err.Error())
	}

	for i, key := range SignerKeys(tx) {
		if key.Equals(skip) {
			continue
		}
		if i >= len(tx.Signatures) || tx.Signatures[i].IsZero() {
			return fmt.Errorf("%w: %s", ErrMissingSignature, key)
		}
		if !tx.Signatures[i].Verify(key, content) {
			return fmt.Errorf("%w: %s", ErrInvalidSignature, key)
		}
	}
	return nil
}

// RequireSigner fails unless key is one of the transaction's required signers. Combined with
// VerifyUserSignatures this means key signed the message.
func RequireSigner(tx *solana.Transaction, key solana.PublicKey) error {
	for _, signer := range SignerKeys(tx) {
		if signer.Equals(key) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMissingSignature, key)
}

func (p RelayPolicy) checkComputeBudget(data []byte) error {
	if len(data) == 0 || data[0] != computeBudgetSetUnitPrice || p.MaxComputeUnitPrice == 0 {
		return nil
	}
	if len(data) < 9 {
		return ErrBadTx
	}
	price, err := bin.NewBinDecoder(data[1:]).ReadUint64(bin.LE)
	if err != nil {
		return errors.Wrap(ErrBadTx, err.Error())
	}
	if price > p.MaxComputeUnitPrice {
		return ErrComputePriceTooHigh
	}
	return nil
}

func decodeSystemTransfer(accounts []solana.PublicKey, data []byte) (*TransferIntent, error) {
	decoder := bin.NewBinDecoder(data)
	typeID, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return nil, ErrBadTx
	}
	if typeID != system.Instruction_Transfer {
		return nil, ErrUnexpectedIx
	}
	lamports, err := decoder.ReadUint64(bin.LE)
	if err != nil || len(accounts) < 2 {
		return nil, ErrBadTx
	}

	return &TransferIntent{
		Kind:      IntentSystemTransfer,
		Sender:    accounts[0],
		Recipient: accounts[1],
		Lamports:  lamports,
	}, nil
}

func decodeClaimDeposit(accounts []solana.PublicKey, data []byte) (*TransferIntent, error) {
	if !hasDiscriminator(data, ClaimDepositDisc) {
		return nil, ErrUnexpectedIx
	}
	var args ClaimDepositArgs
	if err := bin.UnmarshalBorsh(&args, data[8:]); err != nil {
		return nil, ErrBadTx
	}
	if len(accounts) < 3 {
		return nil, ErrBadTx
	}

	return &TransferIntent{
		Kind:      IntentClaimDeposit,
		Recipient: accounts[0],
		Vault:     accounts[1],
		Deposit:   accounts[2],
		Lamports:  args.Amount,
	}, nil
}

func hasDiscriminator(data []byte, disc [8]byte) bool {
	return len(data) >= 8 && bytes.Equal(data[:8], disc[:])
}

// Accounts loaded through address lookup tables cannot be resolved offline and are refused.
func staticKey(msg *solana.Message, idx uint16) (solana.PublicKey, error) {
	if int(idx) >= len(msg.AccountKeys) {
		return solana.PublicKey{}, fmt.Errorf("%w: account index %d outside static keys", ErrBadTx, idx)
	}
	return msg.AccountKeys[idx], nil
}
