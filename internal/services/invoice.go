package services

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"gaslessrelay/internal/datastore/redis_store"
	"gaslessrelay/internal/interfaces"
	"gaslessrelay/internal/models"
	"gaslessrelay/internal/pkg/solana_utils"
)

var (
	errUnknownInvoice = errors.New("unknown invoice payload")
	// ErrSettlementPending means a top-up for the invoice was sent and may still land.
	ErrSettlementPending = errors.New("settlement pending confirmation")
)

// ServiceInvoice sells escrow top-ups for Telegram Stars.
type ServiceInvoice struct {
	fee      *ServiceFee
	escrow   *ServiceEscrow
	invoices interfaces.InvoiceRepository
	linker   interfaces.InvoiceLinker
	redisDB  redis.UniversalClient
	locker   interfaces.Locker
	treasury solana_utils.Wallet
	logger   *zap.Logger
}

func NewServiceInvoice(container *do.Injector) (*ServiceInvoice, error) {
	fee, err := do.Invoke[*ServiceFee](container)
	if err != nil {
		return nil, err
	}

	escrow, err := do.Invoke[*ServiceEscrow](container)
	if err != nil {
		return nil, err
	}

	invoices, err := do.Invoke[interfaces.InvoiceRepository](container)
	if err != nil {
		return nil, err
	}

	linker, err := do.Invoke[interfaces.InvoiceLinker](container)
	if err != nil {
		return nil, err
	}

	redisDB, err := do.InvokeNamed[redis.UniversalClient](container, "redis-db")
	if err != nil {
		return nil, err
	}

	locker, err := do.Invoke[interfaces.Locker](container)
	if err != nil {
		return nil, err
	}

	treasury, err := do.InvokeNamed[solana_utils.Wallet](container, "treasury-wallet")
	if err != nil {
		return nil, err
	}

	logger, err := do.Invoke[*zap.Logger](container)
	if err != nil {
		return nil, err
	}

	return &ServiceInvoice{fee, escrow, invoices, linker, redisDB, locker, treasury, logger.Named("invoice")}, nil
}

func (service *ServiceInvoice) CreateFeeInvoiceLink(ctx context.Context, user *models.UserFromAuth, amountSol decimal.Decimal) (*models.FeeInvoiceLink, error) {
	if err := solana_utils.ValidateUsername(user.Username); err != nil {
		return nil, invalid(err)
	}

	quote, err := service.fee.Quote(ctx, amountSol, decimal.Zero)
	if err != nil {
		return nil, err
	}
	stars := StarsAmount(quote.Fee)
	payload := uuid.NewString()

	link, err := service.linker.CreateInvoiceLink(tele.Invoice{
		Title:       "Escrow top-up",
		Description: fmt.Sprintf("Deposit %s SOL for @%s", amountSol.String(), user.Username),
		Payload:     payload,
		Currency:    INVOICE_CURRENCY,
		Prices: []tele.Price{
			{
				Label:  "Star",
				Amount: stars,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create invoice link")
	}

	invoice := &models.FeeInvoice{
		Payload:        payload,
		TelegramUserID: user.ID,
		Username:       user.Username,
		AmountSol:      amountSol,
		Stars:          stars,
		Status:         models.FeeInvoiceStatusCreated,
	}
	if err := service.invoices.CreateFeeInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	if err := redis_store.MarkInvoicePayload(ctx, service.redisDB, payload, INVOICE_PAYLOAD_TTL); err != nil {
		service.logger.Warn("mark invoice payload", zap.String("payload", payload), zap.Error(err))
	}

	return &models.FeeInvoiceLink{
		InvoiceLink: link,
		Stars:       stars,
		Payload:     payload,
		Quote:       quote,
	}, nil
}

// AcceptCheckout reports whether a pre-checkout query for payload may proceed.
func (service *ServiceInvoice) AcceptCheckout(ctx context.Context, payload string, totalStars int) error {
	known, err := redis_store.HasInvoicePayload(ctx, service.redisDB, payload)
	if err == nil && !known {
		return errUnknownInvoice
	}

	invoice, err := service.invoices.FindFeeInvoice(ctx, payload)
	if err != nil {
		return errors.Wrap(errUnknownInvoice, err.Error())
	}
	if invoice.Status != models.FeeInvoiceStatusCreated {
		return errors.Errorf("invoice is %s", invoice.Status)
	}
	if invoice.Stars != totalStars {
		return errors.Errorf("invoice total %d does not match %d", totalStars, invoice.Stars)
	}
	return nil
}

// SettlePayment marks the invoice paid and funds the user's deposit from the treasury. A
// top-up already sent for the invoice is resolved on chain before another one is built.
func (service *ServiceInvoice) SettlePayment(ctx context.Context, payload, chargeID string) (*models.FeeInvoice, error) {
	unlock, err := service.locker.Lock(ctx, LockKeyInvoice(payload))
	if err != nil {
		return nil, errors.Wrap(err, "lock invoice")
	}
	defer unlock()

	invoice, err := service.invoices.FindFeeInvoice(ctx, payload)
	if err != nil {
		return nil, errors.Wrap(errUnknownInvoice, err.Error())
	}
	if invoice.Status == models.FeeInvoiceStatusSettled {
		return invoice, nil
	}

	if invoice.Status != models.FeeInvoiceStatusPaid {
		invoice.Status = models.FeeInvoiceStatusPaid
		invoice.ChargeID = &chargeID
		if err := service.invoices.UpdateFeeInvoice(ctx, invoice); err != nil {
			return nil, err
		}
	}

	logger := service.logger.With(zap.String("payload", payload))

	if invoice.TopUpSignature != nil {
		state, err := service.escrow.AttemptState(ctx, TopUpAttempt{
			Signature:            *invoice.TopUpSignature,
			LastValidBlockHeight: invoice.TopUpValidUntil,
		})
		if err != nil {
			return invoice, errors.Wrap(err, "previous top-up state")
		}
		switch state {
		case TopUpLanded:
			return service.markSettled(ctx, invoice, *invoice.TopUpSignature), nil
		case TopUpInFlight:
			return invoice, ErrSettlementPending
		}
		logger.Info("previous top-up dropped", zap.String("signature", *invoice.TopUpSignature))
	}

	signature, err := service.escrow.TopUpTracked(ctx, TopUpSourceStars, service.treasury, invoice.Username, invoice.AmountSol, func(attempt TopUpAttempt) error {
		invoice.TopUpSignature = &attempt.Signature
		invoice.TopUpValidUntil = attempt.LastValidBlockHeight
		return service.invoices.UpdateFeeInvoice(ctx, invoice)
	})
	switch {
	case errors.Is(err, solana_utils.ErrConfirmTimeout):
		return invoice, ErrSettlementPending
	case err != nil:
		return invoice, errors.Wrapf(err, "top-up for invoice %s", payload)
	}
	return service.markSettled(ctx, invoice, signature), nil
}

func (service *ServiceInvoice) markSettled(ctx context.Context, invoice *models.FeeInvoice, signature string) *models.FeeInvoice {
	invoice.Status = models.FeeInvoiceStatusSettled
	if err := service.invoices.UpdateFeeInvoice(ctx, invoice); err != nil {
		service.logger.Warn("mark invoice settled", zap.String("payload", invoice.Payload), zap.String("signature", signature), zap.Error(err))
	}
	return invoice
}

// RetryUnsettled settles up to limit invoices that were paid but not yet funded and returns
// how many succeeded.
func (service *ServiceInvoice) RetryUnsettled(ctx context.Context, limit int) (int, error) {
	invoices, err := service.invoices.FindFeeInvoicesByStatus(ctx, models.FeeInvoiceStatusPaid, limit)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, invoice := range invoices {
		chargeID := ""
		if invoice.ChargeID != nil {
			chargeID = *invoice.ChargeID
		}
		_, err := service.SettlePayment(ctx, invoice.Payload, chargeID)
		if errors.Is(err, ErrSettlementPending) {
			service.logger.Info("invoice settlement pending", zap.String("payload", invoice.Payload))
			continue
		}
		if err != nil {
			service.logger.Warn("retry invoice settlement", zap.String("payload", invoice.Payload), zap.Error(err))
			continue
		}
		settled++
	}
	return settled, nil
}
