package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// --- Setup Postgres ---
func setupPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	logger.Initialize("debug")
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_DB": "testdb", "POSTGRES_USER": "postgres"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:secret@%s:%s/testdb?sslmode=disable", host, port.Port())
	db, err := sqlx.Connect("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)

	require.NoError(t, Migrate(ctx, db))
	return db
}

func TestPostgres_SettlementPrimitives(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	requests := NewDepositRequestRepository(db)
	ledger := NewLedgerRepository(db)
	users := NewUserRepository(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	req := &models.DepositRequestDB{
		ID:             uuid.New(),
		UserID:         42,
		Currency:       models.TON,
		ExpectedAmount: decimal.NewFromInt(10),
		PaymentAddress: "UQ-shared",
		Status:         models.DepositStatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(10 * time.Minute),
	}
	require.NoError(t, requests.Create(ctx, req))

	pending, err := requests.FindPending(ctx, 42, models.TON, now)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	t.Run("ledger uniqueness", func(t *testing.T) {
		entry := models.LedgerEntryDB{
			TxID: "0xabc", Currency: models.TON, UserID: 42,
			Amount: decimal.NewFromInt(10), USDAmount: decimal.NewFromInt(25), CreditedAt: now,
		}
		require.NoError(t, ledger.Insert(ctx, entry))
		assert.ErrorIs(t, ledger.Insert(ctx, entry), models.ErrLedgerConflict)

		n, err := ledger.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("concurrent increments", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := users.IncrementBalance(ctx, 7, decimal.RequireFromString("1.25"))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		user, err := users.GetByUserID(ctx, 7)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(25).Equal(user.Balance), "got %s", user.Balance)
	})

	t.Run("first writer wins", func(t *testing.T) {
		err := requests.MarkCompleted(ctx, req.ID, models.DepositCompletion{
			TxID: "0xabc", ActualAmount: decimal.NewFromInt(10), USDAmount: decimal.NewFromInt(25), CompletedAt: now,
		})
		require.NoError(t, err)
		assert.ErrorIs(t, requests.MarkExpired(ctx, req.ID, now.Add(time.Hour)), models.ErrStatusConflict)

		got, err := requests.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DepositStatusCompleted, got.Status)
		require.NotNil(t, got.MatchedTxID)
		assert.Equal(t, "0xabc", *got.MatchedTxID)
	})
}
