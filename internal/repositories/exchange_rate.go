package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/shopspring/decimal"
)

// ExchangeRateCacheRepository keeps the last known USD rate per currency in Redis.
type ExchangeRateCacheRepository struct {
	client *redis.Client
	exp    time.Duration // expiration duration for cached rates
}

// NewExchangeRateCacheRepository creates a new repository instance with optional TTL.
// A zero expiration keeps rates until overwritten.
func NewExchangeRateCacheRepository(client *redis.Client, expiration time.Duration) *ExchangeRateCacheRepository {
	return &ExchangeRateCacheRepository{
		client: client,
		exp:    expiration,
	}
}

func rateKey(currency string) string {
	return fmt.Sprintf("exchange_rate:%s:USD", currency)
}

// GetRate fetches the cached USD rate for a currency.
func (r *ExchangeRateCacheRepository) GetRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	key := rateKey(currency)

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		logger.Log.Debugw("rate cache miss", "key", key, "error", err)
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, fmt.Errorf("exchange rate not found in cache for %s", currency)
		}
		return decimal.Zero, err
	}

	rate, err := decimal.NewFromString(val)
	if err != nil {
		logger.Log.Warnw("malformed cached rate", "key", key, "value", val, "error", err)
		return decimal.Zero, err
	}

	logger.Log.Debugw("rate cache hit", "key", key, "rate", rate)
	return rate, nil
}

// SetRate caches the USD rate for a currency.
func (r *ExchangeRateCacheRepository) SetRate(ctx context.Context, currency string, rate decimal.Decimal) error {
	key := rateKey(currency)
	err := r.client.Set(ctx, key, rate.String(), r.exp).Err()

	logger.Log.Debugw("rate cached", "key", key, "rate", rate, "error", err)
	return err
}
