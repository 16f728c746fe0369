package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/samber/do"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"gaslessrelay/internal/container"
	"gaslessrelay/internal/services"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

type CronJob interface {
	Start(cronRunner *cron.Cron) error
}

func main() {
	app := &cli.App{
		Name: "cronjob",
		Commands: []*cli.Command{
			commandCronjob(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandCronjob() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "run the price warmer and the invoice settlement retry",
		Action: func(c *cli.Context) error {
			injector := container.New(map[string]string{})
			vs := do.MustInvokeNamed[map[string]string](injector, "envs")
			logger := do.MustInvoke[*zap.Logger](injector)

			serviceFee, err := do.Invoke[*services.ServiceFee](injector)
			if err != nil {
				return err
			}

			cronRunner := cron.New()
			jobs := []CronJob{
				NewPriceJob(serviceFee, vs["PRICE_REFRESH_CRON"], logger),
			}

			// settlement needs the treasury and the database; skip it when they are not configured
			if vs["DB_DSN"] != "" && vs["RELAY_PAYER_SECRET_KEY"] != "" {
				serviceInvoice, err := do.Invoke[*services.ServiceInvoice](injector)
				if err != nil {
					return err
				}
				jobs = append(jobs, NewSettlementJob(serviceInvoice, vs["SETTLEMENT_RETRY_CRON"], logger))
			}

			for _, job := range jobs {
				if err := job.Start(cronRunner); err != nil {
					return err
				}
			}

			logger.Info("start cronjob")
			cronRunner.Run()
			return nil
		},
	}
}
