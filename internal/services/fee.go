package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/samber/do"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gaslessrelay/internal/models"
	"gaslessrelay/internal/pkg/caching"
)

var errFeeDivisor = errors.New("fee divisor must be positive")

type ServiceFee struct {
	client heimdall.Doer
	cache  caching.Cache
	cfg    *FeeConfig
	logger *zap.Logger
}

func NewServiceFee(container *do.Injector) (*ServiceFee, error) {
	cfg, err := do.Invoke[*FeeConfig](container)
	if err != nil {
		return nil, err
	}

	cache, err := do.Invoke[caching.Cache](container)
	if err != nil {
		return nil, err
	}

	logger, err := do.Invoke[*zap.Logger](container)
	if err != nil {
		return nil, err
	}

	client := httpclient.NewClient(
		httpclient.WithHTTPTimeout(PRICE_FETCH_TIMEOUT),
		httpclient.WithRetryCount(2),
		httpclient.WithRetrier(heimdall.NewRetrier(heimdall.NewConstantBackoff(200*time.Millisecond, 100*time.Millisecond))),
	)

	return &ServiceFee{client, cache, cfg, logger}, nil
}

// FetchPrice reads the live USD price of the configured symbol from the price source.
// Missing or non-numeric values are errors, never a default.
func (service *ServiceFee) FetchPrice(ctx context.Context) (price decimal.Decimal, err error) {
	defer func() {
		priceFetches.WithLabelValues(resultLabel(err == nil)).Inc()
		if err != nil {
			service.logger.Warn("price fetch failed", zap.String("symbol", service.cfg.Symbol), zap.Error(err))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, service.cfg.SourceURL, nil)
	if err != nil {
		return decimal.Zero, &PriceSourceError{Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := service.client.Do(req)
	if err != nil {
		return decimal.Zero, &PriceSourceError{Cause: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return decimal.Zero, &PriceSourceError{Cause: fmt.Errorf("unexpected status %d", res.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return decimal.Zero, &PriceSourceError{Cause: err}
	}

	price, err = parsePrice(body, service.cfg.Symbol)
	if err != nil {
		return decimal.Zero, &PriceSourceError{Cause: err}
	}
	return price, nil
}

// parsePrice extracts {"<symbol>": {"usd": <number>}}.
func parsePrice(body []byte, symbol string) (decimal.Decimal, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var payload map[string]map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return decimal.Zero, errors.Wrap(err, "decode price response")
	}

	value, ok := payload[symbol]["usd"]
	if !ok || value == nil {
		return decimal.Zero, errors.Errorf("price of %s is missing", symbol)
	}
	number, ok := value.(json.Number)
	if !ok {
		return decimal.Zero, errors.Errorf("price of %s is not a number", symbol)
	}
	price, err := decimal.NewFromString(number.String())
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse price")
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.Errorf("price of %s is not positive", symbol)
	}
	return price, nil
}

// Price returns the cached price, fetching it when the cache is cold.
func (service *ServiceFee) Price(ctx context.Context) (decimal.Decimal, error) {
	raw, err := caching.UseCache(ctx, service.cache, DBKeyPrice(service.cfg.Symbol), service.cfg.CacheTTL, func() (string, error) {
		price, err := service.FetchPrice(ctx)
		if err != nil {
			return "", err
		}
		return price.String(), nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &PriceSourceError{Cause: err}
	}
	return price, nil
}

// RefreshPrice fetches the price and overwrites the cached value.
func (service *ServiceFee) RefreshPrice(ctx context.Context) (decimal.Decimal, error) {
	raw, err := caching.Refresh(ctx, service.cache, DBKeyPrice(service.cfg.Symbol), service.cfg.CacheTTL, func() (string, error) {
		price, err := service.FetchPrice(ctx)
		if err != nil {
			return "", err
		}
		return price.String(), nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// CalculateFee is amountBase * price / divisor rounded up at 1e-4, so the fee never
// undercharges.
func CalculateFee(amountBase, price, divisor decimal.Decimal) (decimal.Decimal, error) {
	if !divisor.IsPositive() {
		return decimal.Zero, errFeeDivisor
	}
	// exact quotient at 1e-4 and its remainder, no intermediate rounding
	fee, rem := amountBase.Mul(price).QuoRem(divisor, FEE_DECIMALS)
	if rem.Sign() > 0 {
		fee = fee.Add(decimal.New(1, -FEE_DECIMALS))
	}
	return fee, nil
}

// Quote prices amountSol at the cached price. A zero divisor selects the Stars rate.
func (service *ServiceFee) Quote(ctx context.Context, amountSol, divisor decimal.Decimal) (*models.FeeQuote, error) {
	if !amountSol.IsPositive() {
		return nil, invalid(errors.New("amount must be positive"))
	}
	if divisor.IsZero() {
		divisor = service.cfg.StarsUSDRate
	}

	price, err := service.Price(ctx)
	if err != nil {
		return nil, err
	}

	fee, err := CalculateFee(amountSol, price, divisor)
	if err != nil {
		return nil, invalid(err)
	}

	return &models.FeeQuote{
		AmountSol:   amountSol,
		SolPriceUsd: price,
		Fee:         fee,
	}, nil
}

// StarsAmount turns a fee into the whole number of Stars charged for it, at least one.
func StarsAmount(fee decimal.Decimal) int {
	stars := fee.Ceil().IntPart()
	if stars < 1 {
		return 1
	}
	return int(stars)
}
