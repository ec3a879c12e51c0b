package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
)

const depositRequestColumns = `id, user_id, currency, expected_amount, payment_address, status,
	created_at, expires_at, matched_tx_id, actual_amount, usd_amount, completed_at`

// DepositRequestRepository persists deposit requests in PostgreSQL.
type DepositRequestRepository struct {
	db *sqlx.DB
}

// NewDepositRequestRepository creates a new repository instance.
func NewDepositRequestRepository(db *sqlx.DB) *DepositRequestRepository {
	return &DepositRequestRepository{db: db}
}

// Create inserts a new deposit request.
func (r *DepositRequestRepository) Create(ctx context.Context, req *models.DepositRequestDB) error {
	const query = `
		INSERT INTO deposit_requests (id, user_id, currency, expected_amount, payment_address, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	args := []any{req.ID, req.UserID, req.Currency, req.ExpectedAmount, req.PaymentAddress, string(req.Status), req.CreatedAt, req.ExpiresAt}

	_, err := r.db.ExecContext(ctx, query, args...)
	logQuery(query, args, nil, err)
	return err
}

// GetByID returns a deposit request or models.ErrNotFound.
func (r *DepositRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DepositRequestDB, error) {
	query := `SELECT ` + depositRequestColumns + ` FROM deposit_requests WHERE id = $1`

	var req models.DepositRequestDB
	err := r.db.GetContext(ctx, &req, query, id)
	logQuery(query, []any{id}, req.Status, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// FindPending returns the user's pending, not yet expired requests for a currency,
// most recently created first.
func (r *DepositRequestRepository) FindPending(ctx context.Context, userID int64, currency string, now time.Time) ([]models.DepositRequestDB, error) {
	query := `SELECT ` + depositRequestColumns + `
		FROM deposit_requests
		WHERE user_id = $1 AND currency = $2 AND status = 'pending' AND expires_at > $3
		ORDER BY created_at DESC`
	args := []any{userID, currency, now}

	var reqs []models.DepositRequestDB
	err := r.db.SelectContext(ctx, &reqs, query, args...)
	logQuery(query, args, len(reqs), err)

	return reqs, err
}

// MarkCompleted moves a pending request to completed. It returns
// models.ErrStatusConflict when the request is no longer pending.
func (r *DepositRequestRepository) MarkCompleted(ctx context.Context, id uuid.UUID, c models.DepositCompletion) error {
	const query = `
		UPDATE deposit_requests
		SET status = 'completed', matched_tx_id = $2, actual_amount = $3, usd_amount = $4, completed_at = $5
		WHERE id = $1 AND status = 'pending'
	`
	args := []any{id, c.TxID, c.ActualAmount, c.USDAmount, c.CompletedAt}
	return r.conditionalUpdate(ctx, query, args)
}

// MarkExpired moves a pending request whose expiry has passed to expired.
func (r *DepositRequestRepository) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) error {
	const query = `
		UPDATE deposit_requests
		SET status = 'expired'
		WHERE id = $1 AND status = 'pending' AND expires_at <= $2
	`
	return r.conditionalUpdate(ctx, query, []any{id, now})
}

// Cancel moves the user's pending request to cancelled.
func (r *DepositRequestRepository) Cancel(ctx context.Context, id uuid.UUID, userID int64) error {
	const query = `
		UPDATE deposit_requests
		SET status = 'cancelled'
		WHERE id = $1 AND user_id = $2 AND status = 'pending'
	`
	return r.conditionalUpdate(ctx, query, []any{id, userID})
}

// ListExpired returns pending requests whose expiry is at or before now, oldest first.
func (r *DepositRequestRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.DepositRequestDB, error) {
	query := `SELECT ` + depositRequestColumns + `
		FROM deposit_requests
		WHERE status = 'pending' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`
	args := []any{now, limit}

	var reqs []models.DepositRequestDB
	err := r.db.SelectContext(ctx, &reqs, query, args...)
	logQuery(query, args, len(reqs), err)

	return reqs, err
}

func (r *DepositRequestRepository) conditionalUpdate(ctx context.Context, query string, args []any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}
	logQuery(query, args, rowsAffected, err)

	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.ErrStatusConflict
	}
	return nil
}
