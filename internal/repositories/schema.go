package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
)

// migrations creates the tables used by the reconciler. Users are owned by the
// profile service; the table is created here only so balances can be upserted.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT PRIMARY KEY,
		balance NUMERIC(30,8) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS deposit_requests (
		id UUID PRIMARY KEY,
		user_id BIGINT NOT NULL,
		currency VARCHAR(16) NOT NULL,
		expected_amount NUMERIC(38,18) NOT NULL,
		payment_address VARCHAR(128) NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		matched_tx_id VARCHAR(128),
		actual_amount NUMERIC(38,18),
		usd_amount NUMERIC(30,8),
		completed_at TIMESTAMPTZ
	);`,
	`CREATE INDEX IF NOT EXISTS deposit_requests_pending_idx
		ON deposit_requests (user_id, currency, created_at DESC) WHERE status = 'pending';`,
	`CREATE INDEX IF NOT EXISTS deposit_requests_expiry_idx
		ON deposit_requests (expires_at) WHERE status = 'pending';`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		tx_id VARCHAR(128) PRIMARY KEY,
		currency VARCHAR(16) NOT NULL,
		user_id BIGINT NOT NULL,
		amount NUMERIC(38,18) NOT NULL,
		usd_amount NUMERIC(30,8) NOT NULL,
		credited_at TIMESTAMPTZ NOT NULL
	);`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			logger.Log.Errorw("migration failed", "error", err)
			return err
		}
	}
	logger.Log.Infow("migrations applied", "count", len(migrations))
	return nil
}
