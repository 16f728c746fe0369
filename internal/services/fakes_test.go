package services

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/go-redis/redis_rate/v10"
	"github.com/samber/do"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"gaslessrelay/internal/datastore/redis_store"
	"gaslessrelay/internal/interfaces"
	"gaslessrelay/internal/models"
	"gaslessrelay/internal/pkg/caching"
	"gaslessrelay/internal/pkg/limiter"
	"gaslessrelay/internal/pkg/solana_utils"
	"gaslessrelay/internal/pkg/tg_utils"
)

const fakeLastValidBlockHeight = 150

type fakeRPC struct {
	mu        sync.Mutex
	sends     atomic.Int32
	sendErr   error
	status    *rpc.SignatureStatusesResult
	statusErr error

	// per-signature statuses take precedence over status
	statuses    map[solana.Signature]*rpc.SignatureStatusesResult
	blockHeight uint64
	balance     uint64
	sent        []*solana.Transaction
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            solana.Hash(solana.NewWallet().PublicKey()),
			LastValidBlockHeight: fakeLastValidBlockHeight,
		},
	}, nil
}

func (f *fakeRPC) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockHeight, nil
}

func (f *fakeRPC) setStatus(sig solana.Signature, status *rpc.SignatureStatusesResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = map[solana.Signature]*rpc.SignatureStatusesResult{}
	}
	f.statuses[sig] = status
}

func (f *fakeRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	f.sends.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeRPC) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	values := make([]*rpc.SignatureStatusesResult, len(sigs))
	for i, sig := range sigs {
		if status, ok := f.statuses[sig]; ok {
			values[i] = status
			continue
		}
		values[i] = f.status
	}
	return &rpc.GetSignatureStatusesResult{Value: values}, nil
}

func (f *fakeRPC) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: f.balance}, nil
}

func confirmedStatus() *rpc.SignatureStatusesResult {
	return &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}
}

type fakeLimiter struct {
	calls atomic.Int32
	deny  bool
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit redis_rate.Limit) error {
	f.calls.Add(1)
	if f.deny {
		return limiter.ErrRateLimited
	}
	return nil
}

type memOutcomes struct {
	mu       sync.Mutex
	outcomes map[string]*models.RelayOutcome
}

func (m *memOutcomes) GetOutcome(ctx context.Context, signature string) (*models.RelayOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcome, ok := m.outcomes[signature]
	if !ok {
		return nil, redis_store.ErrOutcomeNotFound
	}
	cp := *outcome
	return &cp, nil
}

func (m *memOutcomes) SaveOutcome(ctx context.Context, signature string, outcome *models.RelayOutcome, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]*models.RelayOutcome{}
	}
	cp := *outcome
	m.outcomes[signature] = &cp
	return nil
}

type mutexLocker struct {
	mu sync.Mutex
}

func (l *mutexLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	return l.mu.Unlock, nil
}

type memRepository struct {
	mu       sync.Mutex
	records  map[string]models.RelayRecord
	topUps   []models.EscrowTopUp
	invoices map[string]models.FeeInvoice
}

func newMemRepository() *memRepository {
	return &memRepository{
		records:  map[string]models.RelayRecord{},
		invoices: map[string]models.FeeInvoice{},
	}
}

func (m *memRepository) SaveRelayRecord(ctx context.Context, record *models.RelayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.Signature] = *record
	return nil
}

func (m *memRepository) CreateEscrowTopUp(ctx context.Context, topUp *models.EscrowTopUp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topUps = append(m.topUps, *topUp)
	return nil
}

func (m *memRepository) CreateFeeInvoice(ctx context.Context, invoice *models.FeeInvoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[invoice.Payload] = *invoice
	return nil
}

func (m *memRepository) FindFeeInvoice(ctx context.Context, payload string) (*models.FeeInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	invoice, ok := m.invoices[payload]
	if !ok {
		return nil, fmt.Errorf("invoice %s not found", payload)
	}
	return &invoice, nil
}

func (m *memRepository) FindFeeInvoicesByStatus(ctx context.Context, status string, limit int) ([]models.FeeInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FeeInvoice
	for _, invoice := range m.invoices {
		if invoice.Status == status && len(out) < limit {
			out = append(out, invoice)
		}
	}
	return out, nil
}

func (m *memRepository) UpdateFeeInvoice(ctx context.Context, invoice *models.FeeInvoice) error {
	return m.CreateFeeInvoice(ctx, invoice)
}

type memCache struct {
	mu     sync.Mutex
	values map[string]any
}

func (m *memCache) Get(ctx context.Context, key string, target any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return fmt.Errorf("cache miss %s", key)
	}
	*(target.(*string)) = v.(string)
	return nil
}

func (m *memCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]any{}
	}
	m.values[key] = value
	return nil
}

func (m *memCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type fakeLinker struct {
	invoices []tele.Invoice
}

func (f *fakeLinker) CreateInvoiceLink(invoice tele.Invoice) (string, error) {
	f.invoices = append(f.invoices, invoice)
	return "https://t.me/$" + invoice.Payload, nil
}

// relayEnv wires ServiceRelay against in-memory fakes and one trusted Telegram key.
type relayEnv struct {
	container *do.Injector
	payer     solana.PrivateKey
	tgKey     ed25519.PrivateKey
	cfg       *RelayConfig
	rpc       *fakeRPC
	limiter   *fakeLimiter
	outcomes  *memOutcomes
	repo      *memRepository
}

func newRelayEnv(t *testing.T) *relayEnv {
	t.Helper()

	tgPub, tgKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	env := &relayEnv{
		container: do.New(),
		payer:     solana.NewWallet().PrivateKey,
		tgKey:     tgKey,
		cfg: &RelayConfig{
			BotID:                 7000000001,
			TrustedKeys:           [][]byte{tgPub},
			TransferProgramID:     solana_utils.TransferProgramID,
			VerificationProgramID: solana_utils.VerificationProgramID,
			ConfirmTimeout:        200 * time.Millisecond,
			PollInterval:          10 * time.Millisecond,
			OutcomeTTL:            time.Hour,
			RatePerMinute:         10,
			MaxComputeUnitPrice:   DEFAULT_MAX_COMPUTE_UNIT_PRICE,
		},
		rpc:      &fakeRPC{status: confirmedStatus()},
		limiter:  &fakeLimiter{},
		outcomes: &memOutcomes{},
		repo:     newMemRepository(),
	}

	do.ProvideValue(env.container, env.cfg)
	do.ProvideValue(env.container, zap.NewNop())
	do.ProvideValue(env.container, tg_utils.NewAuthenticator(env.cfg.TrustedKeys, nil, nil))
	do.ProvideNamedValue[solana_utils.Wallet](env.container, "relay-wallet", solana_utils.NewLocalWallet(env.payer))
	do.ProvideValue[interfaces.SolanaRPC](env.container, env.rpc)
	do.ProvideValue[interfaces.Limiter](env.container, env.limiter)
	do.ProvideValue[interfaces.OutcomeStore](env.container, env.outcomes)
	do.ProvideValue[interfaces.Locker](env.container, &mutexLocker{})
	do.ProvideValue[interfaces.RelayRepository](env.container, env.repo)
	do.ProvideValue[interfaces.TopUpRepository](env.container, env.repo)
	do.ProvideValue[interfaces.InvoiceRepository](env.container, env.repo)
	do.ProvideValue[caching.Cache](env.container, &memCache{})
	do.Provide(env.container, NewServiceRelay)
	do.Provide(env.container, NewServiceEscrow)
	do.Provide(env.container, NewBot)
	return env
}

func (env *relayEnv) relay(t *testing.T) *ServiceRelay {
	t.Helper()
	service, err := do.Invoke[*ServiceRelay](env.container)
	require.NoError(t, err)
	return service
}

// envelope returns hex validation bytes for username and their signature by the trusted key.
func (env *relayEnv) envelope(username string) (string, string) {
	validationBytes := fmt.Sprintf("%d:WebAppData\nauth_date=%d\nuser={\"id\":42,\"username\":\"%s\"}", env.cfg.BotID, time.Now().Unix(), username)
	signature := ed25519.Sign(env.tgKey, []byte(validationBytes))
	return hex.EncodeToString([]byte(validationBytes)), hex.EncodeToString(signature)
}

// transferRequest builds a user-signed system transfer with the relay as fee payer.
func (env *relayEnv) transferRequest(t *testing.T, user solana.PrivateKey, recipient solana.PublicKey, username string, lamports uint64) *models.GaslessRequest {
	t.Helper()

	tx := env.unsignedTransfer(t, user.PublicKey(), recipient, lamports)
	_, err := solana_utils.NewLocalWallet(user).SignTransaction(context.Background(), tx)
	require.NoError(t, err)

	encoded, err := solana_utils.EncodeTransaction(tx)
	require.NoError(t, err)

	initData, signature := env.envelope(username)
	return &models.GaslessRequest{
		SerializedTransaction: encoded,
		Sender:                user.PublicKey().String(),
		Recipient:             recipient.String(),
		Username:              username,
		AmountLamports:        lamports,
		ProcessedInitData:     initData,
		TelegramSignature:     signature,
	}
}

func (env *relayEnv) unsignedTransfer(t *testing.T, from, to solana.PublicKey, lamports uint64) *solana.Transaction {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(lamports, from, to).Build()},
		solana.Hash(solana.NewWallet().PublicKey()),
		solana.TransactionPayer(env.payer.PublicKey()),
	)
	require.NoError(t, err)
	return tx
}
