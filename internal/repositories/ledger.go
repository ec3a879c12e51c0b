package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// LedgerRepository is the append-only record of credited transactions.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new repository instance.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Exists reports whether a ledger entry for the transaction has been written.
func (r *LedgerRepository) Exists(ctx context.Context, txID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE tx_id = $1)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, txID)
	logQuery(query, []any{txID}, exists, err)

	return exists, err
}

// Insert writes a ledger entry. The primary key on tx_id is the final guard
// against double crediting; a violation is reported as models.ErrLedgerConflict.
func (r *LedgerRepository) Insert(ctx context.Context, e models.LedgerEntryDB) error {
	const query = `
		INSERT INTO ledger_entries (tx_id, currency, user_id, amount, usd_amount, credited_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	args := []any{e.TxID, e.Currency, e.UserID, e.Amount, e.USDAmount, e.CreditedAt}

	_, err := r.db.ExecContext(ctx, query, args...)
	logQuery(query, args, nil, err)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return models.ErrLedgerConflict
	}
	return err
}

// Count returns the number of ledger entries.
func (r *LedgerRepository) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM ledger_entries`

	var n int64
	err := r.db.GetContext(ctx, &n, query)
	logQuery(query, nil, n, err)

	return n, err
}

// ListByUser returns the user's ledger entries, newest first.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID int64) ([]models.LedgerEntryDB, error) {
	const query = `
		SELECT tx_id, currency, user_id, amount, usd_amount, credited_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY credited_at DESC
	`

	var entries []models.LedgerEntryDB
	err := r.db.SelectContext(ctx, &entries, query, userID)
	logQuery(query, []any{userID}, len(entries), err)

	return entries, err
}
