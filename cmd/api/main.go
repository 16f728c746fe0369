package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hiendaovinh/toolkit/pkg/env"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gaslessrelay/internal/api/handler"
	"gaslessrelay/internal/container"
	"gaslessrelay/internal/pkg/solana_utils"
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

func main() {
	vs, err := env.EnvsRequired(
		"BOT_TOKEN",
		"BOT_ID",
		"JWT_SECRET",
		"DB_DSN",
		"SOLANA_RPC_URLS",
		"RELAY_PAYER_SECRET_KEY",
	)
	if err != nil {
		log.Fatal(err)
	}

	injector := container.New(vs)

	app := &cli.App{
		Name: "api",
		Commands: []*cli.Command{
			commandServer(injector),
			commandTopUp(injector),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandServer(injector *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "start the web server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "0.0.0.0:8080",
				Usage: "serve address",
			},
		},
		Action: func(c *cli.Context) error {
			vs := do.MustInvokeNamed[map[string]string](injector, "envs")
			logger := do.MustInvoke[*zap.Logger](injector)
			defer logger.Sync() //nolint:errcheck

			// resolves the payer key and the RPC pool before serving
			serviceRelay, err := do.Invoke[*services.ServiceRelay](injector)
			if err != nil {
				return err
			}

			router, err := handler.New(&handler.Config{
				Container: injector,
				Mode:      vs["API_MODE"],
				Origins:   strings.Split(vs["API_ORIGINS"], ","),
			})
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:    c.String("addr"),
				Handler: router,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errWg, errCtx := errgroup.WithContext(ctx)

			errWg.Go(func() error {
				logger.Info("listen and serve",
					zap.String("addr", c.String("addr")),
					zap.String("mode", vs["API_MODE"]),
					zap.String("payer", serviceRelay.PayerPublicKey().String()),
				)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})

			errWg.Go(func() error {
				<-errCtx.Done()
				return srv.Shutdown(context.TODO())
			})

			return errWg.Wait()
		},
	}
}

func commandTopUp(injector *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "topup",
		Usage: "deposit SOL into the escrow of a telegram username",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "keypair",
				Usage:    "base58 secret key of the depositor",
				EnvVars:  []string{"TOPUP_SECRET_KEY"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "username",
				Usage:    "telegram username without @",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "amount in SOL",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			signer, err := solana_utils.LocalWalletFromBase58(c.String("keypair"))
			if err != nil {
				return err
			}

			amount, err := decimal.NewFromString(c.String("amount"))
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", c.String("amount"), err)
			}

			serviceEscrow, err := do.Invoke[*services.ServiceEscrow](injector)
			if err != nil {
				return err
			}

			username := strings.TrimPrefix(c.String("username"), "@")
			signature, ok := serviceEscrow.TopUpWithSource(c.Context, services.TopUpSourceCLI, signer, username, amount)
			if !ok {
				return fmt.Errorf("top-up of %s SOL for @%s failed", amount, username)
			}

			fmt.Println("Top-up confirmed", signature)
			return nil
		},
	}
}
