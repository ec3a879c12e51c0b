package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestExchangeRateCacheRepository(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newMiniredis(t)
	repo := NewExchangeRateCacheRepository(rdb, 2*time.Second)

	t.Run("Set and Get rate", func(t *testing.T) {
		err := repo.SetRate(ctx, models.TON, decimal.RequireFromString("2.5"))
		require.NoError(t, err)

		got, err := repo.GetRate(ctx, models.TON)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("2.5").Equal(got))
	})

	t.Run("Get missing key returns error", func(t *testing.T) {
		_, err := repo.GetRate(ctx, "XYZ")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "exchange rate not found")
	})

	t.Run("Cached value expires", func(t *testing.T) {
		require.NoError(t, repo.SetRate(ctx, models.ETH, decimal.NewFromInt(3000)))
		mr.FastForward(3 * time.Second)

		_, err := repo.GetRate(ctx, models.ETH)
		assert.Error(t, err)
	})

	t.Run("Malformed value", func(t *testing.T) {
		require.NoError(t, mr.Set("exchange_rate:BTC:USD", "not-a-number"))
		_, err := repo.GetRate(ctx, models.BTC)
		assert.Error(t, err)
	})
}

func TestMonitoringRedisRepository(t *testing.T) {
	ctx := context.Background()
	_, rdb := newMiniredis(t)
	repo := NewMonitoringRedisRepository(rdb)

	tx := models.MonitoredTransaction{
		TxID:             "0xabc",
		Currency:         models.TON,
		UserID:           42,
		DepositRequestID: uuid.New(),
		ExpectedAmount:   decimal.NewFromInt(10),
		AddedAt:          time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, repo.Add(ctx, tx))
	assert.ErrorIs(t, repo.Add(ctx, tx), models.ErrAlreadyMonitored)

	ok, err := repo.Contains(ctx, "0xabc")
	require.NoError(t, err)
	assert.True(t, ok)

	tx.Status = models.ProbePending
	tx.Confirmations = 3
	require.NoError(t, repo.Update(ctx, tx))

	got, err := repo.Get(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, models.ProbePending, got.Status)
	assert.Equal(t, 3, got.Confirmations)
	assert.True(t, tx.AddedAt.Equal(got.AddedAt))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Remove(ctx, "0xabc"))
	assert.ErrorIs(t, repo.Update(ctx, tx), models.ErrNotFound, "update must not resurrect a removed entry")

	_, err = repo.Get(ctx, "0xabc")
	assert.ErrorIs(t, err, models.ErrNotFound)

	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
