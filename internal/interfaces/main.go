package interfaces

import (
	"context"
	"time"

	"gaslessrelay/internal/models"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/go-redis/redis_rate/v10"
	tele "gopkg.in/telebot.v3"
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) error
}

// SolanaRPC is the part of the cluster API the relay and the escrow ledger use.
type SolanaRPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
}

type OutcomeStore interface {
	GetOutcome(ctx context.Context, signature string) (*models.RelayOutcome, error)
	SaveOutcome(ctx context.Context, signature string, outcome *models.RelayOutcome, ttl time.Duration) error
}

// Locker serializes work on a key across instances. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type RelayRepository interface {
	SaveRelayRecord(ctx context.Context, record *models.RelayRecord) error
}

type TopUpRepository interface {
	CreateEscrowTopUp(ctx context.Context, topUp *models.EscrowTopUp) error
}

type InvoiceRepository interface {
	CreateFeeInvoice(ctx context.Context, invoice *models.FeeInvoice) error
	FindFeeInvoice(ctx context.Context, payload string) (*models.FeeInvoice, error)
	UpdateFeeInvoice(ctx context.Context, invoice *models.FeeInvoice) error
	FindFeeInvoicesByStatus(ctx context.Context, status string, limit int) ([]models.FeeInvoice, error)
}

type InvoiceLinker interface {
	CreateInvoiceLink(invoice tele.Invoice) (string, error)
}
