package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gaslessrelay/internal/pkg/solana_utils"
)

func TestLoadRelayConfig(t *testing.T) {
	cfg, err := LoadRelayConfig(map[string]string{"BOT_ID": "7000000001"})
	require.NoError(t, err)
	require.EqualValues(t, 7000000001, cfg.BotID)
	require.Len(t, cfg.TrustedKeys, 1)
	require.Equal(t, solana_utils.TransferProgramID, cfg.TransferProgramID)
	require.Equal(t, DEFAULT_RELAY_CONFIRM_TIMEOUT, cfg.ConfirmTimeout)
	require.Equal(t, DEFAULT_RELAY_RATE_PER_MINUTE, cfg.RatePerMinute)
	require.EqualValues(t, DEFAULT_MIN_PAYER_LAMPORTS, cfg.MinPayerLamports)

	cfg, err = LoadRelayConfig(map[string]string{
		"BOT_ID":                   "1",
		"TELEGRAM_PUBLIC_KEYS":     "00ff,aa11",
		"RELAY_CONFIRM_TIMEOUT":    "10s",
		"RELAY_RATE_PER_MINUTE":    "3",
		"TRANSFER_PROGRAM_ID":      solana_utils.VerificationProgramID.String(),
		"RELAY_MIN_PAYER_LAMPORTS": "42",
	})
	require.NoError(t, err)
	require.Len(t, cfg.TrustedKeys, 2)
	require.Equal(t, 10*time.Second, cfg.ConfirmTimeout)
	require.Equal(t, 3, cfg.RatePerMinute)
	require.Equal(t, solana_utils.VerificationProgramID, cfg.TransferProgramID)
	require.EqualValues(t, 42, cfg.MinPayerLamports)

	for name, vs := range map[string]map[string]string{
		"missing bot id": {},
		"bad key":        {"BOT_ID": "1", "TELEGRAM_PUBLIC_KEYS": "zz"},
		"bad timeout":    {"BOT_ID": "1", "RELAY_CONFIRM_TIMEOUT": "soon"},
		"negative ttl":   {"BOT_ID": "1", "RELAY_OUTCOME_TTL": "-1h"},
		"zero rate":      {"BOT_ID": "1", "RELAY_RATE_PER_MINUTE": "0"},
		"bad program":    {"BOT_ID": "1", "TRANSFER_PROGRAM_ID": "nope"},
		"bad min payer":  {"BOT_ID": "1", "RELAY_MIN_PAYER_LAMPORTS": "-5"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadRelayConfig(vs)
			require.Error(t, err)
		})
	}
}

func TestLoadFeeConfig(t *testing.T) {
	cfg, err := LoadFeeConfig(map[string]string{})
	require.NoError(t, err)
	require.Equal(t, DEFAULT_PRICE_SOURCE_URL, cfg.SourceURL)
	require.Equal(t, DEFAULT_STARS_USD_RATE, cfg.StarsUSDRate.String())

	cfg, err = LoadFeeConfig(map[string]string{"PRICE_SYMBOL": "bitcoin", "STARS_USD_RATE": "0.02", "PRICE_CACHE_TTL": "30s"})
	require.NoError(t, err)
	require.Equal(t, "bitcoin", cfg.Symbol)
	require.Equal(t, "0.02", cfg.StarsUSDRate.String())
	require.Equal(t, 30*time.Second, cfg.CacheTTL)

	_, err = LoadFeeConfig(map[string]string{"STARS_USD_RATE": "-1"})
	require.Error(t, err)
}
