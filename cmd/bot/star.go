package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"gaslessrelay/internal/services"
)

func handleStarPayments(b *tele.Bot) {
	b.Handle(tele.OnCheckout, func(c tele.Context) error {
		query := c.PreCheckoutQuery()
		if query.Currency != services.INVOICE_CURRENCY {
			return b.Accept(query, "unsupported currency")
		}

		serviceInvoice, err := getContextInvoice(c)
		if err != nil {
			return b.Accept(query, "payments are unavailable, try again later")
		}

		if err := serviceInvoice.AcceptCheckout(context.Background(), query.Payload, query.Total); err != nil {
			getContextLogger(c).Info("reject checkout", zap.String("payload", query.Payload), zap.Error(err))
			return b.Accept(query, "this invoice is no longer valid")
		}

		return b.Accept(query)
	})

	b.Handle(tele.OnPayment, func(c tele.Context) error {
		payment := c.Message().Payment
		if payment == nil {
			return nil
		}

		serviceInvoice, err := getContextInvoice(c)
		if err != nil {
			return err
		}

		invoice, err := serviceInvoice.SettlePayment(context.Background(), payment.Payload, payment.TelegramChargeID)
		if errors.Is(err, services.ErrSettlementPending) {
			getContextLogger(c).Info("settlement pending", zap.String("payload", payment.Payload))
			return c.Send("Payment received. Your deposit is being confirmed on chain.")
		}
		if err != nil {
			getContextLogger(c).Error("settle payment", zap.String("payload", payment.Payload), zap.Error(err))
			return c.Send("Payment received. Your deposit is delayed and will be retried shortly.")
		}

		return c.Send(fmt.Sprintf("Payment received. %s SOL is now in escrow for @%s.", invoice.AmountSol, invoice.Username))
	})
}
