package main

import (
	"log"
	"os"
	"time"

	"github.com/hiendaovinh/toolkit/pkg/env"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"gaslessrelay/internal/container"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

const contextContainer = "context-container"

func main() {
	app := &cli.App{
		Name: "bot-telegram",
		Commands: []*cli.Command{
			commandBot(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandBot() *cli.Command {
	return &cli.Command{
		Name:   "server",
		Action: action,
	}
}

func action(c *cli.Context) error {
	vs, err := env.EnvsRequired(
		"BOT_TOKEN",
		"BOT_ID",
		"DB_DSN",
		"SOLANA_RPC_URLS",
		"RELAY_PAYER_SECRET_KEY",
	)
	if err != nil {
		return err
	}

	injector := container.New(vs)

	pref := tele.Settings{
		Token:  vs["BOT_TOKEN"],
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return err
	}

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Callback() != nil {
				defer c.Respond()
			}

			c.Set(contextContainer, injector)
			return next(c)
		}
	})

	b.Handle("/start", commandStart)
	b.Handle("/help", commandHelp)
	handleStarPayments(b)

	logger, err := do.Invoke[*zap.Logger](injector)
	if err != nil {
		return err
	}
	logger.Info("start bot", zap.String("username", b.Me.Username))
	b.Start()
	return injector.Shutdown()
}
