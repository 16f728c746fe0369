package services

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/go-faster/errors"
	"github.com/samber/do"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gaslessrelay/internal/interfaces"
	"gaslessrelay/internal/models"
	"gaslessrelay/internal/pkg/solana_utils"
)

const (
	TopUpSourceAPI   = "api"
	TopUpSourceCLI   = "cli"
	TopUpSourceStars = "stars"
)

// TopUpAttempt is a signed deposit transaction. It can land until the cluster passes
// LastValidBlockHeight.
type TopUpAttempt struct {
	Signature            string
	LastValidBlockHeight uint64
}

type TopUpState int

const (
	TopUpLanded TopUpState = iota + 1
	// failed on chain or expired unseen; a new attempt cannot fund twice
	TopUpDropped
	TopUpInFlight
)

type ServiceEscrow struct {
	rpc    interfaces.SolanaRPC
	topUps interfaces.TopUpRepository
	cfg    *RelayConfig
	logger *zap.Logger
}

func NewServiceEscrow(container *do.Injector) (*ServiceEscrow, error) {
	rpcClient, err := do.Invoke[interfaces.SolanaRPC](container)
	if err != nil {
		return nil, err
	}

	topUps, err := do.Invoke[interfaces.TopUpRepository](container)
	if err != nil {
		return nil, err
	}

	cfg, err := do.Invoke[*RelayConfig](container)
	if err != nil {
		return nil, err
	}

	logger, err := do.Invoke[*zap.Logger](container)
	if err != nil {
		return nil, err
	}

	return &ServiceEscrow{rpcClient, topUps, cfg, logger}, nil
}

func (service *ServiceEscrow) Address(owner solana.PublicKey, username string) (*models.EscrowAddress, error) {
	deposit, depositBump, err := solana_utils.DeriveDeposit(owner, username, service.cfg.TransferProgramID)
	if err != nil {
		return nil, invalid(err)
	}
	vault, vaultBump, err := solana_utils.DeriveVault(service.cfg.TransferProgramID)
	if err != nil {
		return nil, err
	}

	return &models.EscrowAddress{
		Owner:       owner.String(),
		Username:    username,
		Deposit:     deposit.String(),
		DepositBump: depositBump,
		Vault:       vault.String(),
		VaultBump:   vaultBump,
	}, nil
}

// ToLamports floors amountSol to whole lamports.
func ToLamports(amountSol decimal.Decimal) (uint64, error) {
	lamports := amountSol.Shift(LAMPORTS_DECIMALS).Floor()
	if !lamports.IsPositive() {
		return 0, errors.New("amount is below one lamport")
	}
	if !lamports.BigInt().IsUint64() {
		return 0, errors.New("amount overflows lamports")
	}
	return lamports.BigInt().Uint64(), nil
}

// TopUp deposits amountSol from signer into the deposit of (signer, username) and waits for
// confirmation. Failures are logged and reported as false; the caller may retry.
func (service *ServiceEscrow) TopUp(ctx context.Context, signer solana_utils.Wallet, username string, amountSol decimal.Decimal) bool {
	_, ok := service.TopUpWithSource(ctx, TopUpSourceAPI, signer, username, amountSol)
	return ok
}

func (service *ServiceEscrow) TopUpWithSource(ctx context.Context, source string, signer solana_utils.Wallet, username string, amountSol decimal.Decimal) (string, bool) {
	signature, err := service.TopUpTracked(ctx, source, signer, username, amountSol, nil)
	return signature, err == nil
}

// TopUpTracked hands the signed attempt to track before sending it; a track error aborts the
// top-up. A returned error wrapping solana_utils.ErrConfirmTimeout means the transaction may
// still land.
func (service *ServiceEscrow) TopUpTracked(ctx context.Context, source string, signer solana_utils.Wallet, username string, amountSol decimal.Decimal, track func(TopUpAttempt) error) (string, error) {
	logger := service.logger.With(
		zap.String("depositor", signer.PublicKey().String()),
		zap.String("username", username),
		zap.String("amount_sol", amountSol.String()),
		zap.String("source", source),
	)

	record := &models.EscrowTopUp{
		Depositor: signer.PublicKey().String(),
		Username:  username,
		Source:    source,
	}

	signature, err := service.topUp(ctx, signer, username, amountSol, record, track)
	escrowTopUps.WithLabelValues(resultLabel(err == nil)).Inc()
	if err != nil {
		logger.Error("escrow top-up failed", zap.Error(err))
	} else {
		logger.Info("escrow top-up confirmed", zap.String("signature", signature))
	}

	record.Success = err == nil
	if signature != "" {
		record.Signature = &signature
	}
	if record.DepositAddress != "" {
		if err := service.topUps.CreateEscrowTopUp(ctx, record); err != nil {
			logger.Warn("store escrow top-up", zap.Error(err))
		}
	}
	return signature, err
}

// AttemptState tells whether attempt landed, can no longer land, or may still land.
func (service *ServiceEscrow) AttemptState(ctx context.Context, attempt TopUpAttempt) (TopUpState, error) {
	sig, err := solana.SignatureFromBase58(attempt.Signature)
	if err != nil {
		return 0, errors.Wrap(err, "attempt signature")
	}

	// height first: a status read after a finalized height past the limit is the final word
	height, err := service.rpc.GetBlockHeight(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return 0, errors.Wrap(err, "block height")
	}

	confirmed, err := solana_utils.SignatureConfirmed(ctx, service.rpc, sig)
	var txErr *solana_utils.TransactionError
	switch {
	case confirmed:
		return TopUpLanded, nil
	case errors.As(err, &txErr):
		return TopUpDropped, nil
	case err != nil:
		return 0, err
	case height > attempt.LastValidBlockHeight:
		return TopUpDropped, nil
	}
	return TopUpInFlight, nil
}

func (service *ServiceEscrow) topUp(ctx context.Context, signer solana_utils.Wallet, username string, amountSol decimal.Decimal, record *models.EscrowTopUp, track func(TopUpAttempt) error) (string, error) {
	deposit, _, err := solana_utils.DeriveDeposit(signer.PublicKey(), username, service.cfg.TransferProgramID)
	if err != nil {
		return "", err
	}
	record.DepositAddress = deposit.String()

	lamports, err := ToLamports(amountSol)
	if err != nil {
		return "", err
	}
	record.Lamports = int64(lamports)

	ix, err := solana_utils.BuildDepositForUsernameInstruction(service.cfg.TransferProgramID, signer.PublicKey(), signer.PublicKey(), username, lamports)
	if err != nil {
		return "", err
	}

	latest, err := service.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", errors.Wrap(err, "get latest blockhash")
	}

	tx, err := solana.NewTransaction([]solana.Instruction{ix}, latest.Value.Blockhash, solana.TransactionPayer(signer.PublicKey()))
	if err != nil {
		return "", errors.Wrap(err, "build transaction")
	}
	if _, err := signer.SignTransaction(ctx, tx); err != nil {
		return "", err
	}

	signed := tx.Signatures[0].String()
	if track != nil {
		if err := track(TopUpAttempt{Signature: signed, LastValidBlockHeight: latest.Value.LastValidBlockHeight}); err != nil {
			return "", errors.Wrap(err, "track top-up")
		}
	}

	sig, err := service.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{PreflightCommitment: rpc.CommitmentConfirmed})
	if err != nil {
		return signed, errors.Wrap(err, "send transaction")
	}

	if err := solana_utils.WaitForConfirmation(ctx, service.rpc, sig, service.cfg.ConfirmTimeout, service.cfg.PollInterval); err != nil {
		return sig.String(), err
	}
	return sig.String(), nil
}
