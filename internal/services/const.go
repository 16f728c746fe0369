package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

var ErrRelayLock = errors.New("relay locked")

const (
	SERVER_MODE_DEVELOPMENT = "development"
	SERVER_MODE_PRODUCTION  = "production"

	DEFAULT_PRICE_SOURCE_URL       = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"
	DEFAULT_PRICE_SYMBOL           = "solana"
	DEFAULT_STARS_USD_RATE         = "0.013"
	DEFAULT_RELAY_CONFIRM_TIMEOUT  = 45 * time.Second
	DEFAULT_RELAY_OUTCOME_TTL      = 24 * time.Hour
	DEFAULT_RELAY_RATE_PER_MINUTE  = 10
	DEFAULT_MAX_COMPUTE_UNIT_PRICE = 1_000_000
	DEFAULT_MIN_PAYER_LAMPORTS     = 10_000_000

	CACHE_TTL_1_MIN  = 1 * time.Minute
	CACHE_TTL_1_DAY  = 24 * time.Hour

	FEE_DECIMALS        = 4
	LAMPORTS_DECIMALS   = 9
	INVOICE_CURRENCY    = "XTR"
	INVOICE_PAYLOAD_TTL = CACHE_TTL_1_DAY
	SESSION_TOKEN_TTL   = CACHE_TTL_1_DAY
	PRICE_FETCH_TIMEOUT = 5 * time.Second
)

func LockKeyRelay(signature string) string {
	return fmt.Sprintf("lock:relay:%s", signature)
}

func LockKeyInvoice(payload string) string {
	return fmt.Sprintf("lock:invoice:%s", payload)
}

func LimitKeyRelaySender(sender string) string {
	return fmt.Sprintf("limit:relay:%s", sender)
}

func DBKeyPrice(symbol string) string {
	return fmt.Sprintf("price:%s:usd", strings.ToLower(symbol))
}
