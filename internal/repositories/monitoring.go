package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
)

const monitoringKey = "monitor:tx"

// updateIfPresent rewrites a hash field only when it still exists, so an update
// racing with a removal cannot resurrect the entry.
var updateIfPresent = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	return redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
return -1
`)

// MonitoringRedisRepository keeps the in-flight transaction working set in a
// Redis hash so several reconciler instances can share it.
type MonitoringRedisRepository struct {
	client *redis.Client
	key    string
}

// NewMonitoringRedisRepository creates a new repository instance.
func NewMonitoringRedisRepository(client *redis.Client) *MonitoringRedisRepository {
	return &MonitoringRedisRepository{client: client, key: monitoringKey}
}

// Add stores the transaction unless it is already tracked.
func (r *MonitoringRedisRepository) Add(ctx context.Context, tx models.MonitoredTransaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	added, err := r.client.HSetNX(ctx, r.key, tx.TxID, data).Result()
	logger.Log.Debugw("monitor add", "tx_id", tx.TxID, "added", added, "error", err)
	if err != nil {
		return err
	}
	if !added {
		return models.ErrAlreadyMonitored
	}
	return nil
}

// Get returns a tracked transaction or models.ErrNotFound.
func (r *MonitoringRedisRepository) Get(ctx context.Context, txID string) (*models.MonitoredTransaction, error) {
	val, err := r.client.HGet(ctx, r.key, txID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var tx models.MonitoredTransaction
	if err := json.Unmarshal([]byte(val), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Contains reports whether the transaction is tracked.
func (r *MonitoringRedisRepository) Contains(ctx context.Context, txID string) (bool, error) {
	return r.client.HExists(ctx, r.key, txID).Result()
}

// Update overwrites a tracked transaction. Removed entries stay removed.
func (r *MonitoringRedisRepository) Update(ctx context.Context, tx models.MonitoredTransaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	res, err := updateIfPresent.Run(ctx, r.client, []string{r.key}, tx.TxID, data).Int64()
	if err != nil {
		return err
	}
	if res < 0 {
		return models.ErrNotFound
	}
	return nil
}

// Remove drops the transaction. Removing an absent entry is not an error.
func (r *MonitoringRedisRepository) Remove(ctx context.Context, txID string) error {
	err := r.client.HDel(ctx, r.key, txID).Err()
	logger.Log.Debugw("monitor remove", "tx_id", txID, "error", err)
	return err
}

// List returns every tracked transaction. Undecodable entries are skipped.
func (r *MonitoringRedisRepository) List(ctx context.Context) ([]models.MonitoredTransaction, error) {
	vals, err := r.client.HVals(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.MonitoredTransaction, 0, len(vals))
	for _, v := range vals {
		var tx models.MonitoredTransaction
		if err := json.Unmarshal([]byte(v), &tx); err != nil {
			logger.Log.Warnw("skipping malformed monitored transaction", "error", err)
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}
