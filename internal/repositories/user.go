package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// UserRepository reads and credits user USD balances.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByUserID returns the user's balance record or models.ErrNotFound.
func (r *UserRepository) GetByUserID(ctx context.Context, userID int64) (*models.UserDB, error) {
	const query = `
		SELECT user_id, balance, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`

	var user models.UserDB
	err := r.db.GetContext(ctx, &user, query, userID)
	logQuery(query, []any{userID}, user.Balance, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// IncrementBalance atomically adds amount to the user's balance and returns the
// new balance. A negative amount reverses an earlier increment. The row is
// created on first credit.
func (r *UserRepository) IncrementBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	const query = `
		INSERT INTO users (user_id, balance, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET balance = users.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING balance
	`
	args := []any{userID, amount}

	var balance decimal.Decimal
	err := r.db.GetContext(ctx, &balance, query, args...)
	logQuery(query, args, balance, err)

	return balance, err
}
