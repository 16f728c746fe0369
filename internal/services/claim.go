package services

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/go-faster/errors"

	"gaslessrelay/internal/models"
	"gaslessrelay/internal/pkg/solana_utils"
	"gaslessrelay/internal/pkg/tg_utils"
)

// ClaimTransaction builds the unsigned claim of a deposit for the recipient to sign and hand
// back to Relay. The relay is fee payer; the recipient signs the session store and the claim.
func (service *ServiceRelay) ClaimTransaction(ctx context.Context, req *models.ClaimTransactionRequest) (*models.ClaimTransaction, error) {
	recipient, err := solana.PublicKeyFromBase58(req.Recipient)
	if err != nil {
		return nil, invalid(errors.Wrap(err, "recipient"))
	}
	depositor, err := solana.PublicKeyFromBase58(req.Depositor)
	if err != nil {
		return nil, invalid(errors.Wrap(err, "depositor"))
	}
	if err := solana_utils.ValidateUsername(req.Username); err != nil {
		return nil, invalid(err)
	}
	if req.AmountLamports == 0 {
		return nil, invalid(errors.New("amountLamports must be positive"))
	}
	validationBytes, err := tg_utils.DecodeBytes(req.ProcessedInitData)
	if err != nil {
		return nil, invalid(errors.Wrap(err, "processedInitData"))
	}
	if len(validationBytes) == 0 || len(validationBytes) > tg_utils.MaxValidationBytes {
		return nil, invalid(fmt.Errorf("validation bytes must be 1 to %d bytes", tg_utils.MaxValidationBytes))
	}

	payer := service.wallet.PublicKey()
	store, err := solana_utils.BuildStoreInstruction(service.cfg.VerificationProgramID, payer, recipient, validationBytes)
	if err != nil {
		return nil, invalid(err)
	}
	claim, err := solana_utils.BuildClaimDepositInstruction(service.cfg.TransferProgramID, service.cfg.VerificationProgramID, recipient, depositor, req.Username, req.AmountLamports)
	if err != nil {
		return nil, invalid(err)
	}

	latest, err := service.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, errors.Wrap(err, "get latest blockhash")
	}

	tx, err := solana.NewTransaction([]solana.Instruction{store, claim}, latest.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, errors.Wrap(err, "build transaction")
	}
	encoded, err := solana_utils.EncodeTransaction(tx)
	if err != nil {
		return nil, err
	}

	return &models.ClaimTransaction{
		SerializedTransaction: encoded,
		LastValidBlockHeight:  latest.Value.LastValidBlockHeight,
	}, nil
}
