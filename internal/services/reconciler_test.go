package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositReconciler_CreateDepositRequest(t *testing.T) {
	tests := []struct {
		name     string
		currency string
		amount   string
		wantErr  error
	}{
		{"ok", models.TON, "10", nil},
		{"at minimum", models.ETH, "0.001", nil},
		{"below minimum", models.TON, "0.5", ErrAmountTooSmall},
		{"unknown currency", "DOGE", "100", ErrUnsupportedCurrency},
		{"supported but no address", models.BTC, "1", ErrUnsupportedCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req, err := f.r.CreateDepositRequest(context.Background(), 42, tt.currency, decimal.RequireFromString(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, req)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testAddresses[tt.currency], req.PaymentAddress)
			assert.Equal(t, models.DepositStatusPending, req.Status)
			assert.True(t, req.ExpiresAt.Equal(f.clock.Now().Add(10*time.Minute)))

			stored, err := f.r.GetDepositRequest(context.Background(), 42, req.ID)
			require.NoError(t, err)
			assert.Equal(t, req.ID, stored.ID)
		})
	}
}

func TestDepositReconciler_CreateDepositRequest_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	requests := NewMockDepositRequestStore(ctrl)
	requests.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	r := NewDepositReconciler(requests, nil, nil, nil, nil, staticRates{}, nil, testAddresses)
	_, err := r.CreateDepositRequest(context.Background(), 1, models.TON, decimal.NewFromInt(5))
	assert.EqualError(t, err, "db down")
}

func TestDepositReconciler_GetAndCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req, err := f.r.CreateDepositRequest(ctx, 42, models.TON, decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = f.r.GetDepositRequest(ctx, 7, req.ID)
	assert.ErrorIs(t, err, ErrRequestNotFound, "other users cannot see the request")
	_, err = f.r.GetDepositRequest(ctx, 42, uuid.New())
	assert.ErrorIs(t, err, ErrRequestNotFound)

	assert.ErrorIs(t, f.r.CancelDepositRequest(ctx, 7, req.ID), ErrRequestNotFound)
	require.NoError(t, f.r.CancelDepositRequest(ctx, 42, req.ID))
	assert.ErrorIs(t, f.r.CancelDepositRequest(ctx, 42, req.ID), ErrAlreadyProcessed)

	got, err := f.r.GetDepositRequest(ctx, 42, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusCancelled, got.Status)

	_, err = f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: "0xabc"})
	assert.ErrorIs(t, err, ErrNoActiveRequest)
}

func TestDepositReconciler_RegisterTransaction_Guards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: "DOGE", TxID: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)

	_, err = f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: "   "})
	assert.ErrorIs(t, err, ErrInvalidTransactionID)

	_, err = f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: "0xabc"})
	assert.ErrorIs(t, err, ErrNoActiveRequest)

	_, err = f.r.CreateDepositRequest(ctx, 42, models.TON, decimal.NewFromInt(10))
	require.NoError(t, err)

	tx, err := f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: " 0xabc "})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", tx.TxID)
	assert.True(t, decimal.NewFromInt(25).Equal(tx.USDAmountHint))

	_, err = f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: "0xabc"})
	assert.ErrorIs(t, err, ErrDuplicateTransaction)

	// a request expired by time alone no longer accepts submissions
	f.clock.Advance(11 * time.Minute)
	_, err = f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: "0xdef"})
	assert.ErrorIs(t, err, ErrNoActiveRequest)
}

func TestDepositReconciler_RegisterTransaction_AlreadyCredited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.Insert(ctx, models.LedgerEntryDB{TxID: "0xold", UserID: 42}))
	_, err := f.r.CreateDepositRequest(ctx, 42, models.TON, decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: "0xold"})
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
}

func TestDepositReconciler_RegisterTransaction_RequestSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	older, err := f.r.CreateDepositRequest(ctx, 42, models.TON, decimal.NewFromInt(10))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	newer, err := f.r.CreateDepositRequest(ctx, 42, models.TON, decimal.NewFromInt(20))
	require.NoError(t, err)
	foreign, err := f.r.CreateDepositRequest(ctx, 7, models.TON, decimal.NewFromInt(20))
	require.NoError(t, err)
	eth, err := f.r.CreateDepositRequest(ctx, 42, models.ETH, decimal.NewFromInt(1))
	require.NoError(t, err)

	tx, err := f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: "a"})
	require.NoError(t, err)
	assert.Equal(t, newer.ID, tx.DepositRequestID, "most recent request by default")
	assert.True(t, decimal.NewFromInt(20).Equal(tx.ExpectedAmount))

	tx, err = f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: "b", DepositRequestID: &older.ID, ExpectedAmount: decimal.NewFromInt(12)})
	require.NoError(t, err)
	assert.Equal(t, older.ID, tx.DepositRequestID, "explicit request id wins")
	assert.True(t, decimal.NewFromInt(12).Equal(tx.ExpectedAmount))

	for name, id := range map[string]uuid.UUID{"foreign": foreign.ID, "other currency": eth.ID, "unknown": uuid.New()} {
		id := id
		_, err = f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: "c-" + name, DepositRequestID: &id})
		assert.ErrorIs(t, err, ErrNoActiveRequest, name)
	}
}

func TestDepositReconciler_RegisterTransaction_ConcurrentAdd(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	requests := NewMockDepositRequestStore(ctrl)
	ledger := NewMockTransactionLedger(ctrl)
	monitor := NewMockMonitoringStore(ctrl)

	req := models.DepositRequestDB{ID: uuid.New(), UserID: 42, Currency: models.TON, ExpectedAmount: decimal.NewFromInt(10)}
	monitor.EXPECT().Contains(gomock.Any(), "0xabc").Return(false, nil)
	ledger.EXPECT().Exists(gomock.Any(), "0xabc").Return(false, nil)
	requests.EXPECT().FindPending(gomock.Any(), int64(42), models.TON, gomock.Any()).Return([]models.DepositRequestDB{req}, nil)
	monitor.EXPECT().Add(gomock.Any(), gomock.Any()).Return(models.ErrAlreadyMonitored)

	r := NewDepositReconciler(requests, ledger, nil, monitor, nil, staticRates{}, nil, testAddresses)
	_, err := r.RegisterTransaction(context.Background(), Submission{UserID: 42, Currency: models.TON, TxID: "0xabc"})
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
}

func TestDepositReconciler_GetBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.True(t, f.balance(t, 42).IsZero(), "unknown user has zero balance")

	_, err := f.store.IncrementBalance(ctx, 42, decimal.RequireFromString("12.5"))
	require.NoError(t, err)
	assert.Equal(t, "12.5", f.balance(t, 42).String())
}
