package container

import (
	"database/sql"
	"os"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/hiendaovinh/toolkit/pkg/db"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"gaslessrelay/internal/datastore"
	"gaslessrelay/internal/datastore/redis_store"
	"gaslessrelay/internal/interfaces"
	"gaslessrelay/internal/pkg/caching"
	"gaslessrelay/internal/pkg/limiter"
	"gaslessrelay/internal/pkg/logger"
	"gaslessrelay/internal/pkg/solana_utils"
	"gaslessrelay/internal/pkg/tg_utils"
	"gaslessrelay/internal/services"
)

var optionalEnvs = []string{
	"API_MODE",
	"API_ORIGINS",
	"LOG_LEVEL",
	"TELEGRAM_PUBLIC_KEYS",
	"TRANSFER_PROGRAM_ID",
	"VERIFICATION_PROGRAM_ID",
	"PRICE_SOURCE_URL",
	"PRICE_SYMBOL",
	"PRICE_CACHE_TTL",
	"PRICE_REFRESH_CRON",
	"STARS_USD_RATE",
	"RELAY_CONFIRM_TIMEOUT",
	"RELAY_POLL_INTERVAL",
	"RELAY_OUTCOME_TTL",
	"RELAY_RATE_PER_MINUTE",
	"RELAY_MAX_COMPUTE_UNIT_PRICE",
	"RELAY_MIN_PAYER_LAMPORTS",
	"SETTLEMENT_RETRY_CRON",
	"TREASURY_SECRET_KEY",
}

// New registers every process-wide handle lazily; a binary only pays for what it invokes.
func New(vs map[string]string) *do.Injector {
	injector := do.New()
	for _, key := range optionalEnvs {
		if _, ok := vs[key]; !ok {
			vs[key] = os.Getenv(key)
		}
	}
	for _, key := range []string{"BOT_TOKEN", "BOT_ID", "JWT_SECRET", "DB_DSN", "SOLANA_RPC_URLS", "RELAY_PAYER_SECRET_KEY"} {
		if _, ok := vs[key]; !ok {
			vs[key] = os.Getenv(key)
		}
	}

	if vs["API_MODE"] == "" {
		vs["API_MODE"] = services.SERVER_MODE_PRODUCTION
	}
	if vs["API_ORIGINS"] == "" {
		vs["API_ORIGINS"] = "*"
	}
	if vs["PRICE_REFRESH_CRON"] == "" {
		vs["PRICE_REFRESH_CRON"] = "@every 30s"
	}

	do.ProvideNamedValue(injector, "envs", vs)

	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		return logger.New(vs["LOG_LEVEL"])
	})

	do.Provide(injector, func(i *do.Injector) (*bun.DB, error) {
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(vs["DB_DSN"]),
			pgdriver.WithPassword(os.Getenv("DB_PASSWORD")),
		))

		return bun.NewDB(sqldb, pgdialect.New()), nil
	})

	provideRedis(injector, "redis-db", "REDIS_DB")
	provideRedis(injector, "redis-cache", "REDIS_CACHE")
	provideRedis(injector, "redis-limiter", "REDIS_LIMITER")
	provideRedis(injector, "redis-mutex", "REDIS_MUTEX")

	do.Provide(injector, func(i *do.Injector) (caching.Cache, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-cache")
		if err != nil {
			return nil, err
		}

		return caching.NewCacheRedis(dbRedis, true)
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.Limiter, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-limiter")
		if err != nil {
			return nil, err
		}

		return limiter.NewLimiter(dbRedis)
	})

	do.Provide(injector, func(i *do.Injector) (*redsync.Redsync, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-mutex")
		if err != nil {
			return nil, err
		}

		pool := goredis.NewPool(dbRedis)
		return redsync.New(pool), nil
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.Locker, error) {
		rs, err := do.Invoke[*redsync.Redsync](i)
		if err != nil {
			return nil, err
		}
		return redis_store.NewMutexLocker(rs), nil
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.OutcomeStore, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-db")
		if err != nil {
			return nil, err
		}
		return redis_store.NewOutcomeStore(dbRedis), nil
	})

	do.Provide(injector, func(i *do.Injector) (*datastore.Repository, error) {
		postgres, err := do.Invoke[*bun.DB](i)
		if err != nil {
			return nil, err
		}
		return datastore.NewRepository(postgres), nil
	})
	do.Provide(injector, func(i *do.Injector) (interfaces.RelayRepository, error) {
		return do.Invoke[*datastore.Repository](i)
	})
	do.Provide(injector, func(i *do.Injector) (interfaces.TopUpRepository, error) {
		return do.Invoke[*datastore.Repository](i)
	})
	do.Provide(injector, func(i *do.Injector) (interfaces.InvoiceRepository, error) {
		return do.Invoke[*datastore.Repository](i)
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.SolanaRPC, error) {
		return solana_utils.NewRPCPool(vs["SOLANA_RPC_URLS"])
	})

	do.Provide(injector, func(i *do.Injector) (*services.RelayConfig, error) {
		return services.LoadRelayConfig(vs)
	})

	do.Provide(injector, func(i *do.Injector) (*services.FeeConfig, error) {
		return services.LoadFeeConfig(vs)
	})

	do.Provide(injector, func(i *do.Injector) (*tg_utils.Authenticator, error) {
		cfg, err := do.Invoke[*services.RelayConfig](i)
		if err != nil {
			return nil, err
		}
		log, err := do.Invoke[*zap.Logger](i)
		if err != nil {
			return nil, err
		}
		return tg_utils.NewAuthenticator(cfg.TrustedKeys, tg_utils.Ed25519, log.Named("authenticator")), nil
	})

	do.ProvideNamed(injector, "relay-wallet", func(i *do.Injector) (solana_utils.Wallet, error) {
		return solana_utils.LocalWalletFromBase58(vs["RELAY_PAYER_SECRET_KEY"])
	})

	do.ProvideNamed(injector, "treasury-wallet", func(i *do.Injector) (solana_utils.Wallet, error) {
		if vs["TREASURY_SECRET_KEY"] == "" {
			return do.InvokeNamed[solana_utils.Wallet](i, "relay-wallet")
		}
		return solana_utils.LocalWalletFromBase58(vs["TREASURY_SECRET_KEY"])
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.InvoiceLinker, error) {
		return services.NewTeleBot(vs["BOT_TOKEN"])
	})

	do.Provide(injector, func(i *do.Injector) (*services.Authentication, error) {
		return services.NewAuthentication(vs["JWT_SECRET"])
	})

	do.Provide(injector, services.NewBot)
	do.Provide(injector, services.NewServiceFee)
	do.Provide(injector, services.NewServiceEscrow)
	do.Provide(injector, services.NewServiceRelay)
	do.Provide(injector, services.NewServiceInvoice)

	return injector
}

// provideRedis registers a client for env; CLUSTER_<env> wins when set.
func provideRedis(injector *do.Injector, name, env string) {
	do.ProvideNamed(injector, name, func(i *do.Injector) (redis.UniversalClient, error) {
		clusterURL := os.Getenv("CLUSTER_" + env)
		if clusterURL != "" {
			clusterOpts, err := redis.ParseClusterURL(clusterURL)
			if err != nil {
				return nil, err
			}
			return redis.NewClusterClient(clusterOpts), nil
		}
		return db.InitRedis(&db.RedisConfig{
			URL: os.Getenv(env),
		})
	})
}
