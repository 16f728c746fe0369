package services

import (
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"gaslessrelay/internal/pkg/solana_utils"
	"gaslessrelay/internal/pkg/tg_utils"
)

type RelayConfig struct {
	BotID                 int64
	TrustedKeys           [][]byte
	TransferProgramID     solana.PublicKey
	VerificationProgramID solana.PublicKey
	ConfirmTimeout        time.Duration
	PollInterval          time.Duration
	OutcomeTTL            time.Duration
	RatePerMinute         int
	MaxComputeUnitPrice   uint64
	MinPayerLamports      uint64
}

type FeeConfig struct {
	SourceURL    string
	Symbol       string
	CacheTTL     time.Duration
	StarsUSDRate decimal.Decimal
}

// LoadRelayConfig reads relay settings from the env map; absent values take defaults.
func LoadRelayConfig(vs map[string]string) (*RelayConfig, error) {
	cfg := &RelayConfig{
		TransferProgramID:     solana_utils.TransferProgramID,
		VerificationProgramID: solana_utils.VerificationProgramID,
		ConfirmTimeout:        DEFAULT_RELAY_CONFIRM_TIMEOUT,
		PollInterval:          solana_utils.DefaultPollInterval,
		OutcomeTTL:            DEFAULT_RELAY_OUTCOME_TTL,
		RatePerMinute:         DEFAULT_RELAY_RATE_PER_MINUTE,
		MaxComputeUnitPrice:   DEFAULT_MAX_COMPUTE_UNIT_PRICE,
		MinPayerLamports:      DEFAULT_MIN_PAYER_LAMPORTS,
	}

	var err error
	if cfg.BotID, err = strconv.ParseInt(vs["BOT_ID"], 10, 64); err != nil {
		return nil, errors.Wrap(err, "BOT_ID")
	}
	if cfg.TrustedKeys, err = tg_utils.ParseTrustedKeys(vs["TELEGRAM_PUBLIC_KEYS"]); err != nil {
		return nil, err
	}
	if v := vs["TRANSFER_PROGRAM_ID"]; v != "" {
		if cfg.TransferProgramID, err = solana.PublicKeyFromBase58(v); err != nil {
			return nil, errors.Wrap(err, "TRANSFER_PROGRAM_ID")
		}
	}
	if v := vs["VERIFICATION_PROGRAM_ID"]; v != "" {
		if cfg.VerificationProgramID, err = solana.PublicKeyFromBase58(v); err != nil {
			return nil, errors.Wrap(err, "VERIFICATION_PROGRAM_ID")
		}
	}
	if err = parseDuration(vs, "RELAY_CONFIRM_TIMEOUT", &cfg.ConfirmTimeout); err != nil {
		return nil, err
	}
	if err = parseDuration(vs, "RELAY_POLL_INTERVAL", &cfg.PollInterval); err != nil {
		return nil, err
	}
	if err = parseDuration(vs, "RELAY_OUTCOME_TTL", &cfg.OutcomeTTL); err != nil {
		return nil, err
	}
	if v := vs["RELAY_RATE_PER_MINUTE"]; v != "" {
		if cfg.RatePerMinute, err = strconv.Atoi(v); err != nil || cfg.RatePerMinute <= 0 {
			return nil, errors.Errorf("invalid RELAY_RATE_PER_MINUTE %q", v)
		}
	}
	if v := vs["RELAY_MAX_COMPUTE_UNIT_PRICE"]; v != "" {
		if cfg.MaxComputeUnitPrice, err = strconv.ParseUint(v, 10, 64); err != nil {
			return nil, errors.Wrap(err, "RELAY_MAX_COMPUTE_UNIT_PRICE")
		}
	}
	if v := vs["RELAY_MIN_PAYER_LAMPORTS"]; v != "" {
		if cfg.MinPayerLamports, err = strconv.ParseUint(v, 10, 64); err != nil {
			return nil, errors.Wrap(err, "RELAY_MIN_PAYER_LAMPORTS")
		}
	}
	return cfg, nil
}

func LoadFeeConfig(vs map[string]string) (*FeeConfig, error) {
	cfg := &FeeConfig{
		SourceURL:    DEFAULT_PRICE_SOURCE_URL,
		Symbol:       DEFAULT_PRICE_SYMBOL,
		CacheTTL:     CACHE_TTL_1_MIN,
		StarsUSDRate: decimal.RequireFromString(DEFAULT_STARS_USD_RATE),
	}
	if v := vs["PRICE_SOURCE_URL"]; v != "" {
		cfg.SourceURL = v
	}
	if v := vs["PRICE_SYMBOL"]; v != "" {
		cfg.Symbol = v
	}
	if err := parseDuration(vs, "PRICE_CACHE_TTL", &cfg.CacheTTL); err != nil {
		return nil, err
	}
	if v := vs["STARS_USD_RATE"]; v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil || !rate.IsPositive() {
			return nil, errors.Errorf("invalid STARS_USD_RATE %q", v)
		}
		cfg.StarsUSDRate = rate
	}
	return cfg, nil
}

func parseDuration(vs map[string]string, key string, target *time.Duration) error {
	v := vs[key]
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return errors.Errorf("invalid %s %q", key, v)
	}
	*target = d
	return nil
}
