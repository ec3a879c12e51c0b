package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:generate mockgen -source=exchange_rate.go -destination=exchange_rate_mock.go -package=services

// ErrRateUnavailable is returned when no rate has ever been observed for a currency.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// RateSource fetches current USD rates from an upstream service.
type RateSource interface {
	GetRates(ctx context.Context, currencies []string) (map[string]decimal.Decimal, error)
}

// RateCache mirrors the last known rates so a restarted process starts warm.
type RateCache interface {
	GetRate(ctx context.Context, currency string) (decimal.Decimal, error)
	SetRate(ctx context.Context, currency string, rate decimal.Decimal) error
}

// ExchangeRateProvider serves the last known USD rate per currency. Rates are
// refreshed on a schedule; a failed refresh keeps the previous values.
type ExchangeRateProvider struct {
	source     RateSource
	cache      RateCache
	currencies []string
	timeout    time.Duration
	log        *zap.SugaredLogger

	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewExchangeRateProvider creates a provider for the given currencies. cache may be nil.
func NewExchangeRateProvider(source RateSource, cache RateCache, currencies []string) *ExchangeRateProvider {
	return &ExchangeRateProvider{
		source:     source,
		cache:      cache,
		currencies: currencies,
		timeout:    10 * time.Second,
		log:        logger.Named("rates"),
		rates:      make(map[string]decimal.Decimal),
	}
}

// Warm loads rates from the cache for currencies without an in-process value.
func (p *ExchangeRateProvider) Warm(ctx context.Context) {
	if p.cache == nil {
		return
	}
	for _, c := range p.currencies {
		if _, ok := p.lookup(c); ok {
			continue
		}
		rate, err := p.cache.GetRate(ctx, c)
		if err != nil || !rate.IsPositive() {
			continue
		}
		p.store(c, rate)
	}
}

// Refresh fetches all rates from the source. Currencies missing from the
// response keep their previous value.
func (p *ExchangeRateProvider) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rates, err := p.source.GetRates(ctx, p.currencies)
	if err != nil {
		p.log.Warnw("rate refresh failed, keeping last known values", "error", err)
		return err
	}

	for c, rate := range rates {
		if !rate.IsPositive() {
			continue
		}
		p.store(c, rate)
		if p.cache != nil {
			if err := p.cache.SetRate(ctx, c, rate); err != nil {
				p.log.Warnw("failed to mirror rate", "currency", c, "error", err)
			}
		}
	}
	p.log.Infow("rates refreshed", "count", len(rates))
	return nil
}

// GetRate returns the last known USD rate for the currency.
func (p *ExchangeRateProvider) GetRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	if rate, ok := p.lookup(currency); ok {
		return rate, nil
	}
	if p.cache != nil {
		if rate, err := p.cache.GetRate(ctx, currency); err == nil && rate.IsPositive() {
			p.store(currency, rate)
			return rate, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %s", ErrRateUnavailable, currency)
}

func (p *ExchangeRateProvider) lookup(currency string) (decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rate, ok := p.rates[currency]
	return rate, ok
}

func (p *ExchangeRateProvider) store(currency string, rate decimal.Decimal) {
	p.mu.Lock()
	p.rates[currency] = rate
	p.mu.Unlock()
}
