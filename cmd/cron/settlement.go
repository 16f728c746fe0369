package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"gaslessrelay/internal/services"
)

const settlementBatch = 20

// SettlementJob funds Stars invoices whose payment arrived but whose top-up failed.
type SettlementJob struct {
	invoices *services.ServiceInvoice
	schedule string
	logger   *zap.Logger
}

func NewSettlementJob(invoices *services.ServiceInvoice, schedule string, logger *zap.Logger) *SettlementJob {
	if schedule == "" {
		schedule = "@every 5m"
	}
	return &SettlementJob{invoices, schedule, logger.Named("settlement-job")}
}

func (j *SettlementJob) Start(cronRunner *cron.Cron) error {
	if _, err := cronRunner.AddFunc(j.schedule, j.runScheduledTask); err != nil {
		return err
	}
	j.logger.Info("settlement cronjob scheduled", zap.String("cron", j.schedule))
	return nil
}

func (j *SettlementJob) runScheduledTask() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	settled, err := j.invoices.RetryUnsettled(ctx, settlementBatch)
	if err != nil {
		j.logger.Warn("retry unsettled invoices", zap.Error(err))
		return
	}
	if settled > 0 {
		j.logger.Info("invoices settled", zap.Int("count", settled))
	}
}
