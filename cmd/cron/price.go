package main

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"gaslessrelay/internal/services"
)

// PriceJob refreshes the cached SOL price on a schedule.
type PriceJob struct {
	fee      *services.ServiceFee
	schedule string
	logger   *zap.Logger
}

func NewPriceJob(fee *services.ServiceFee, schedule string, logger *zap.Logger) *PriceJob {
	return &PriceJob{fee, schedule, logger.Named("price-job")}
}

func (j *PriceJob) Start(cronRunner *cron.Cron) error {
	if _, err := cronRunner.AddFunc(j.schedule, j.runScheduledTask); err != nil {
		return err
	}
	j.logger.Info("price cronjob scheduled", zap.String("cron", j.schedule))
	j.runScheduledTask()
	return nil
}

func (j *PriceJob) runScheduledTask() {
	ctx, cancel := context.WithTimeout(context.Background(), services.PRICE_FETCH_TIMEOUT*2)
	defer cancel()

	price, err := j.fee.RefreshPrice(ctx)
	if err != nil {
		j.logger.Warn("refresh price", zap.Error(err))
		return
	}
	j.logger.Debug("price refreshed", zap.String("usd", price.String()))
}
