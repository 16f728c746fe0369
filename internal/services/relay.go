package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/go-faster/errors"
	"github.com/go-redis/redis_rate/v10"
	"github.com/samber/do"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"gaslessrelay/internal/datastore/redis_store"
	"gaslessrelay/internal/interfaces"
	"gaslessrelay/internal/models"
	"gaslessrelay/internal/pkg/limiter"
	"gaslessrelay/internal/pkg/solana_utils"
	"gaslessrelay/internal/pkg/tg_utils"
)

var (
	errEnvelope        = errors.New("envelope not verified")
	errPayloadMismatch = errors.New("transaction does not match the request")
	errUsernameBinding = errors.New("username does not match the authenticated user")
)

type ServiceRelay struct {
	auth     *tg_utils.Authenticator
	wallet   solana_utils.Wallet
	rpc      interfaces.SolanaRPC
	limiter  interfaces.Limiter
	outcomes interfaces.OutcomeStore
	locker   interfaces.Locker
	records  interfaces.RelayRepository
	cfg      *RelayConfig
	logger   *zap.Logger
	group    singleflight.Group
}

func NewServiceRelay(container *do.Injector) (*ServiceRelay, error) {
	auth, err := do.Invoke[*tg_utils.Authenticator](container)
	if err != nil {
		return nil, err
	}

	wallet, err := do.InvokeNamed[solana_utils.Wallet](container, "relay-wallet")
	if err != nil {
		return nil, err
	}

	rpcClient, err := do.Invoke[interfaces.SolanaRPC](container)
	if err != nil {
		return nil, err
	}

	rateLimiter, err := do.Invoke[interfaces.Limiter](container)
	if err != nil {
		return nil, err
	}

	outcomes, err := do.Invoke[interfaces.OutcomeStore](container)
	if err != nil {
		return nil, err
	}

	locker, err := do.Invoke[interfaces.Locker](container)
	if err != nil {
		return nil, err
	}

	records, err := do.Invoke[interfaces.RelayRepository](container)
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

	return &ServiceRelay{
		auth:     auth,
		wallet:   wallet,
		rpc:      rpcClient,
		limiter:  rateLimiter,
		outcomes: outcomes,
		locker:   locker,
		records:  records,
		cfg:      cfg,
		logger:   logger.Named("relay"),
	}, nil
}

func (service *ServiceRelay) PayerPublicKey() solana.PublicKey {
	return service.wallet.PublicKey()
}

// PayerStatus reports whether the fee payer holds enough lamports to keep relaying.
func (service *ServiceRelay) PayerStatus(ctx context.Context) (*models.PayerStatus, error) {
	balance, err := service.rpc.GetBalance(ctx, service.wallet.PublicKey(), rpc.CommitmentConfirmed)
	if err != nil {
		return nil, errors.Wrap(err, "payer balance")
	}
	return &models.PayerStatus{
		Payer:           service.wallet.PublicKey().String(),
		BalanceLamports: balance.Value,
		Funded:          balance.Value >= service.cfg.MinPayerLamports,
		TrustedKeys:     service.auth.KeyCount(),
	}, nil
}

type relayResult struct {
	outcome *models.RelayOutcome
	err     error
}

// Relay authenticates req, checks its transaction against the request, co-signs it as fee
// payer and submits it. The returned outcome is never nil. A failed submission also returns
// a *SubmissionError; a pending outcome returns no error.
func (service *ServiceRelay) Relay(ctx context.Context, req *models.GaslessRequest) (outcome *models.RelayOutcome, err error) {
	defer func() {
		relayOutcomes.WithLabelValues(string(outcome.Status)).Inc()
	}()

	sender, recipient, err := validateShape(req)
	if err != nil {
		return rejected(err), invalid(err)
	}

	validationBytes, err := service.authenticate(req)
	if err != nil {
		return rejected(ErrUnauthorized), err
	}

	username, err := tg_utils.ExtractUsername(validationBytes)
	if err != nil {
		return rejected(err), invalid(err)
	}
	if username != req.Username {
		return rejected(errUsernameBinding), invalid(errUsernameBinding)
	}

	tx, intent, err := service.inspect(req, sender, recipient)
	if err != nil {
		return rejected(err), invalid(err)
	}

	if _, err := service.wallet.SignTransaction(ctx, tx); err != nil {
		return rejected(err), errors.Wrap(err, "co-sign")
	}

	// duplicates of a known transaction do not spend the sender's quota
	if !service.known(ctx, tx.Signatures[0].String()) {
		if err := service.limiter.Allow(ctx, LimitKeyRelaySender(sender.String()), redis_rate.PerMinute(service.cfg.RatePerMinute)); err != nil {
			if errors.Is(err, limiter.ErrRateLimited) {
				return rejected(err), err
			}
			return rejected(err), errors.Wrap(err, "rate limiter")
		}
	}

	record := &models.RelayRecord{
		Signature:      tx.Signatures[0].String(),
		Sender:         sender.String(),
		Recipient:      recipient.String(),
		Username:       req.Username,
		AmountLamports: int64(req.AmountLamports),
		Kind:           intent.Kind,
	}

	v, _, _ := service.group.Do(record.Signature, func() (any, error) {
		outcome, err := service.submitOnce(ctx, tx, record)
		return &relayResult{outcome, err}, nil
	})
	res := v.(*relayResult)
	return res.outcome, res.err
}

func (service *ServiceRelay) known(ctx context.Context, signature string) bool {
	existing, err := service.outcomes.GetOutcome(ctx, signature)
	return err == nil && existing != nil
}

func validateShape(req *models.GaslessRequest) (solana.PublicKey, solana.PublicKey, error) {
	if req == nil {
		return solana.PublicKey{}, solana.PublicKey{}, errors.New("empty request")
	}
	if strings.TrimSpace(req.SerializedTransaction) == "" {
		return solana.PublicKey{}, solana.PublicKey{}, errors.New("serializedTransaction is required")
	}
	sender, err := solana.PublicKeyFromBase58(req.Sender)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, errors.Wrap(err, "sender")
	}
	recipient, err := solana.PublicKeyFromBase58(req.Recipient)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, errors.Wrap(err, "recipient")
	}
	if err := solana_utils.ValidateUsername(req.Username); err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	if req.AmountLamports == 0 {
		return solana.PublicKey{}, solana.PublicKey{}, errors.New("amountLamports must be positive")
	}
	if strings.TrimSpace(req.ProcessedInitData) == "" {
		return solana.PublicKey{}, solana.PublicKey{}, errors.New("processedInitData is required")
	}
	return sender, recipient, nil
}

// authenticate verifies the envelope against the configured trusted keys only.
// req.TelegramPublicKey is ignored.
func (service *ServiceRelay) authenticate(req *models.GaslessRequest) ([]byte, error) {
	validationBytes, err := tg_utils.DecodeBytes(req.ProcessedInitData)
	if err != nil {
		service.logAuthFailure(req)
		return nil, unauthorized(errors.Wrap(err, "decode validation bytes"))
	}
	if len(validationBytes) > tg_utils.MaxValidationBytes {
		return nil, invalid(fmt.Errorf("validation bytes exceed %d bytes", tg_utils.MaxValidationBytes))
	}

	signature, err := tg_utils.DecodeBytes(req.TelegramSignature)
	if err != nil {
		service.logAuthFailure(req)
		return nil, unauthorized(errors.Wrap(err, "decode signature"))
	}

	if !service.auth.Verify(validationBytes, signature) {
		service.logAuthFailure(req)
		return nil, unauthorized(errEnvelope)
	}
	return validationBytes, nil
}

func (service *ServiceRelay) logAuthFailure(req *models.GaslessRequest) {
	service.logger.Warn("relay authorization failed",
		zap.String("sender", req.Sender),
		zap.String("recipient", req.Recipient),
	)
}

func (service *ServiceRelay) inspect(req *models.GaslessRequest, sender, recipient solana.PublicKey) (*solana.Transaction, *solana_utils.TransferIntent, error) {
	tx, err := solana_utils.DecodeTransaction(req.SerializedTransaction)
	if err != nil {
		return nil, nil, err
	}

	policy := solana_utils.RelayPolicy{
		FeePayer:              service.wallet.PublicKey(),
		TransferProgramID:     service.cfg.TransferProgramID,
		VerificationProgramID: service.cfg.VerificationProgramID,
		MaxComputeUnitPrice:   service.cfg.MaxComputeUnitPrice,
	}
	intent, err := policy.Inspect(tx)
	if err != nil {
		return nil, nil, err
	}
	if err := service.matchIntent(intent, req, sender, recipient); err != nil {
		return nil, nil, err
	}
	if err := solana_utils.RequireSigner(tx, intent.Authority()); err != nil {
		return nil, nil, err
	}
	if err := solana_utils.VerifyUserSignatures(tx, service.wallet.PublicKey()); err != nil {
		return nil, nil, err
	}
	return tx, intent, nil
}

func (service *ServiceRelay) matchIntent(intent *solana_utils.TransferIntent, req *models.GaslessRequest, sender, recipient solana.PublicKey) error {
	if intent.Lamports != req.AmountLamports || !intent.Recipient.Equals(recipient) {
		return errPayloadMismatch
	}

	switch intent.Kind {
	case solana_utils.IntentSystemTransfer:
		if !intent.Sender.Equals(sender) {
			return errPayloadMismatch
		}
	case solana_utils.IntentClaimDeposit:
		deposit, _, err := solana_utils.DeriveDeposit(sender, req.Username, service.cfg.TransferProgramID)
		if err != nil {
			return err
		}
		vault, _, err := solana_utils.DeriveVault(service.cfg.TransferProgramID)
		if err != nil {
			return err
		}
		if !intent.Deposit.Equals(deposit) || !intent.Vault.Equals(vault) {
			return errPayloadMismatch
		}
	default:
		return errPayloadMismatch
	}
	return nil
}

// submitOnce sends tx at most once per signature across instances. Later duplicates get the
// stored outcome; a stored pending outcome is re-checked, never resent.
func (service *ServiceRelay) submitOnce(ctx context.Context, tx *solana.Transaction, record *models.RelayRecord) (*models.RelayOutcome, error) {
	logger := service.logger.With(zap.String("signature", record.Signature))

	unlock, err := service.locker.Lock(ctx, LockKeyRelay(record.Signature))
	if err != nil {
		return pending(record.Signature), errors.Wrap(ErrRelayLock, err.Error())
	}
	defer unlock()

	existing, err := service.outcomes.GetOutcome(ctx, record.Signature)
	switch {
	case err == nil && existing != nil:
		logger.Info("duplicate relay request", zap.String("status", string(existing.Status)))
		switch existing.Status {
		case models.RelayStatusSubmitted:
			return existing, nil
		case models.RelayStatusFailed:
			return existing, &SubmissionError{Signature: record.Signature, Cause: errors.New(existing.Cause)}
		case models.RelayStatusPending:
			return service.await(ctx, tx.Signatures[0], record)
		}
	case err != nil && !errors.Is(err, redis_store.ErrOutcomeNotFound):
		logger.Warn("read relay outcome", zap.Error(err))
	}

	sig, err := service.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{PreflightCommitment: rpc.CommitmentConfirmed})
	if err != nil {
		if IsInvalidUsernameError(err) {
			return rejected(solana_utils.ErrInvalidUsername), invalid(solana_utils.ErrInvalidUsername)
		}
		return service.resolveSendError(ctx, tx.Signatures[0], record, err)
	}

	service.save(ctx, pending(sig.String()))
	return service.await(ctx, sig, record)
}

// resolveSendError looks the signature up after a failed send. A transaction that already
// landed keeps its on-chain result and a node rejection fails this attempt. Anything else
// is pending and is not stored, so a retry sends the same signed bytes again.
func (service *ServiceRelay) resolveSendError(ctx context.Context, sig solana.Signature, record *models.RelayRecord, sendErr error) (*models.RelayOutcome, error) {
	logger := service.logger.With(zap.String("signature", record.Signature), zap.NamedError("send_error", sendErr))

	confirmed, statusErr := solana_utils.SignatureConfirmed(ctx, service.rpc, sig)
	var txErr *solana_utils.TransactionError
	switch {
	case confirmed:
		logger.Info("relay transaction already landed")
		return service.conclude(ctx, sig, record, nil)
	case errors.As(statusErr, &txErr):
		return service.conclude(ctx, sig, record, statusErr)
	case statusErr == nil && isNodeRejection(sendErr):
		logger.Warn("send relay transaction")
		service.persist(ctx, record, models.RelayStatusFailed, sendErr.Error())
		return failed(record.Signature, sendErr), &SubmissionError{Signature: record.Signature, Cause: sendErr}
	}

	logger.Warn("relay send outcome unknown", zap.NamedError("status_error", statusErr))
	service.persist(ctx, record, models.RelayStatusPending, "")
	return pending(record.Signature), nil
}

// isNodeRejection reports whether the node answered the send with an error of its own.
// "already processed" only says the transaction exists, not how it ended.
func isNodeRejection(err error) bool {
	var rpcErr *jsonrpc.RPCError
	return errors.As(err, &rpcErr) && !strings.Contains(rpcErr.Message, "already been processed")
}

func (service *ServiceRelay) await(ctx context.Context, sig solana.Signature, record *models.RelayRecord) (*models.RelayOutcome, error) {
	start := time.Now()
	err := solana_utils.WaitForConfirmation(ctx, service.rpc, sig, service.cfg.ConfirmTimeout, service.cfg.PollInterval)

	var txErr *solana_utils.TransactionError
	if err == nil || errors.As(err, &txErr) {
		relayConfirmSeconds.Observe(time.Since(start).Seconds())
	}
	return service.conclude(ctx, sig, record, err)
}

// conclude turns a confirmation result into the stored outcome.
func (service *ServiceRelay) conclude(ctx context.Context, sig solana.Signature, record *models.RelayRecord, err error) (*models.RelayOutcome, error) {
	var outcome *models.RelayOutcome
	var txErr *solana_utils.TransactionError
	switch {
	case err == nil:
		outcome = submitted(sig.String())
	case errors.As(err, &txErr):
		outcome = failed(sig.String(), err)
		if IsInvalidUsernameError(err) {
			err = invalid(solana_utils.ErrInvalidUsername)
		} else {
			err = &SubmissionError{Signature: sig.String(), Cause: err}
		}
	default:
		service.logger.Info("relay confirmation pending", zap.String("signature", sig.String()), zap.Error(err))
		outcome = pending(sig.String())
		err = nil
	}

	service.save(ctx, outcome)
	service.persist(ctx, record, outcome.Status, outcome.Cause)
	return outcome, err
}

func (service *ServiceRelay) save(ctx context.Context, outcome *models.RelayOutcome) {
	if err := service.outcomes.SaveOutcome(ctx, outcome.Signature, outcome, service.cfg.OutcomeTTL); err != nil {
		service.logger.Warn("save relay outcome", zap.String("signature", outcome.Signature), zap.Error(err))
	}
}

func (service *ServiceRelay) persist(ctx context.Context, record *models.RelayRecord, status models.RelayStatus, cause string) {
	record.Status = string(status)
	record.Cause = nil
	if cause != "" {
		record.Cause = &cause
	}
	if err := service.records.SaveRelayRecord(ctx, record); err != nil {
		service.logger.Warn("store relay record", zap.String("signature", record.Signature), zap.Error(err))
	}
}

// IsInvalidUsernameError recognizes the transfer program's InvalidTelegramUsername error.
func IsInvalidUsernameError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{"InvalidTelegramUsername", "Error Number: 6007", "0x1777", "\"Custom\":6007", "Custom:6007"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func rejected(reason error) *models.RelayOutcome {
	return &models.RelayOutcome{Status: models.RelayStatusRejected, Reason: reason.Error(), UpdatedAt: time.Now()}
}

func submitted(signature string) *models.RelayOutcome {
	return &models.RelayOutcome{Status: models.RelayStatusSubmitted, Signature: signature, UpdatedAt: time.Now()}
}

func failed(signature string, cause error) *models.RelayOutcome {
	return &models.RelayOutcome{Status: models.RelayStatusFailed, Signature: signature, Cause: cause.Error(), UpdatedAt: time.Now()}
}

func pending(signature string) *models.RelayOutcome {
	return &models.RelayOutcome{Status: models.RelayStatusPending, Signature: signature, UpdatedAt: time.Now()}
}
