package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:generate mockgen -source=reconciler.go -destination=reconciler_mock.go -package=services

var (
	// ErrUnsupportedCurrency is returned for currencies without a deposit route.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrAmountTooSmall is returned when the expected amount is below the currency minimum.
	ErrAmountTooSmall = errors.New("amount below minimum deposit")
	// ErrInvalidTransactionID is returned for an empty transaction id.
	ErrInvalidTransactionID = errors.New("invalid transaction id")
	// ErrDuplicateTransaction is returned when the transaction is already monitored or credited.
	ErrDuplicateTransaction = errors.New("transaction already submitted")
	// ErrNoActiveRequest is returned when no pending deposit request matches a submission.
	ErrNoActiveRequest = errors.New("no active deposit request")
	// ErrAlreadyProcessed is returned when a settlement finds the transaction already credited.
	ErrAlreadyProcessed = errors.New("transaction already processed")
	// ErrNoObservedAmount is returned when settlement has no positive on-chain amount to credit.
	ErrNoObservedAmount = errors.New("no amount observed on chain")
	// ErrRequestClosed is returned when the transaction's deposit request expired or was cancelled.
	ErrRequestClosed = errors.New("deposit request closed")
	// ErrRequestNotFound is returned when a deposit request does not exist or belongs to another user.
	ErrRequestNotFound = errors.New("deposit request not found")
)

// DepositRequestStore persists deposit intents.
type DepositRequestStore interface {
	Create(ctx context.Context, req *models.DepositRequestDB) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DepositRequestDB, error)
	FindPending(ctx context.Context, userID int64, currency string, now time.Time) ([]models.DepositRequestDB, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, c models.DepositCompletion) error
	MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) error
	Cancel(ctx context.Context, id uuid.UUID, userID int64) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.DepositRequestDB, error)
}

// TransactionLedger records credited transactions, unique by tx id.
type TransactionLedger interface {
	Exists(ctx context.Context, txID string) (bool, error)
	Insert(ctx context.Context, e models.LedgerEntryDB) error
	ListByUser(ctx context.Context, userID int64) ([]models.LedgerEntryDB, error)
}

// BalanceStore holds USD balances with atomic increments.
type BalanceStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.UserDB, error)
	IncrementBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
}

// MonitoringStore holds transactions awaiting confirmation.
type MonitoringStore interface {
	Add(ctx context.Context, tx models.MonitoredTransaction) error
	Get(ctx context.Context, txID string) (*models.MonitoredTransaction, error)
	Contains(ctx context.Context, txID string) (bool, error)
	Update(ctx context.Context, tx models.MonitoredTransaction) error
	Remove(ctx context.Context, txID string) error
	List(ctx context.Context) ([]models.MonitoredTransaction, error)
}

// ChainProber probes a transaction on the chain of the given currency.
type ChainProber interface {
	Probe(ctx context.Context, currency, txID string) models.ProbeResult
}

// RateProvider returns the USD rate of a currency.
type RateProvider interface {
	GetRate(ctx context.Context, currency string) (decimal.Decimal, error)
}

// Notifier delivers user-facing events. It must not block settlement on failure.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind models.NotificationKind, payload models.NotificationData)
}

// Submission is a user's report of a sent transaction.
type Submission struct {
	UserID           int64
	Currency         string
	TxID             string
	DepositRequestID *uuid.UUID      // optional; pins the request to match
	ExpectedAmount   decimal.Decimal // optional; defaults to the request amount
}

// DepositReconciler drives deposits from request to credit or expiry.
type DepositReconciler struct {
	requests  DepositRequestStore
	ledger    TransactionLedger
	balances  BalanceStore
	monitor   MonitoringStore
	prober    ChainProber
	rates     RateProvider
	notifier  Notifier
	addresses map[string]string

	policy         ConfirmationPolicy
	depositTimeout time.Duration
	abandonAfter   time.Duration
	storeTimeout   time.Duration
	probeTimeout   time.Duration
	workers        int
	sweepBatch     int
	now            func() time.Time
	log            *zap.SugaredLogger
}

// Option configures a DepositReconciler.
type Option func(*DepositReconciler)

// WithPolicy overrides the confirmation thresholds.
func WithPolicy(p ConfirmationPolicy) Option {
	return func(r *DepositReconciler) { r.policy = p }
}

// WithDepositTimeout sets how long a deposit request stays open.
func WithDepositTimeout(d time.Duration) Option {
	return func(r *DepositReconciler) { r.depositTimeout = d }
}

// WithAbandonAfter sets the staleness window for unresolved transactions.
func WithAbandonAfter(d time.Duration) Option {
	return func(r *DepositReconciler) { r.abandonAfter = d }
}

// WithTimeouts sets the per-call bounds for store operations and chain probes.
func WithTimeouts(store, probe time.Duration) Option {
	return func(r *DepositReconciler) {
		r.storeTimeout = store
		r.probeTimeout = probe
	}
}

// WithWorkers sets the number of concurrent probes per poll cycle.
func WithWorkers(n int) Option {
	return func(r *DepositReconciler) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *DepositReconciler) { r.now = now }
}

// NewDepositReconciler wires a reconciler. addresses maps currency to the shared
// deposit address handed out with each request.
func NewDepositReconciler(
	requests DepositRequestStore,
	ledger TransactionLedger,
	balances BalanceStore,
	monitor MonitoringStore,
	prober ChainProber,
	rates RateProvider,
	notifier Notifier,
	addresses map[string]string,
	opts ...Option,
) *DepositReconciler {
	r := &DepositReconciler{
		requests:       requests,
		ledger:         ledger,
		balances:       balances,
		monitor:        monitor,
		prober:         prober,
		rates:          rates,
		notifier:       notifier,
		addresses:      addresses,
		policy:         DefaultConfirmationPolicy(),
		depositTimeout: 10 * time.Minute,
		abandonAfter:   24 * time.Hour,
		storeTimeout:   5 * time.Second,
		probeTimeout:   10 * time.Second,
		workers:        8,
		sweepBatch:     500,
		now:            time.Now,
		log:            logger.Named("reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// storeCtx bounds a single store call.
func (r *DepositReconciler) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.storeTimeout)
}

// CreateDepositRequest opens a deposit intent for the user. The returned request
// carries the payment address and the fixed expiry time.
func (r *DepositReconciler) CreateDepositRequest(ctx context.Context, userID int64, currency string, amount decimal.Decimal) (*models.DepositRequestDB, error) {
	min, ok := models.MinDepositAmount(currency)
	if !ok {
		return nil, ErrUnsupportedCurrency
	}
	address, ok := r.addresses[currency]
	if !ok || address == "" {
		return nil, ErrUnsupportedCurrency
	}
	if amount.LessThan(min) {
		return nil, ErrAmountTooSmall
	}

	now := r.now().UTC()
	req := &models.DepositRequestDB{
		ID:             uuid.New(),
		UserID:         userID,
		Currency:       currency,
		ExpectedAmount: amount,
		PaymentAddress: address,
		Status:         models.DepositStatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(r.depositTimeout),
	}

	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	if err := r.requests.Create(sctx, req); err != nil {
		r.log.Errorw("failed to create deposit request", "user_id", userID, "currency", currency, "error", err)
		return nil, err
	}

	r.log.Infow("deposit request created",
		"request_id", req.ID, "user_id", userID, "currency", currency,
		"amount", amount, "expires_at", req.ExpiresAt)
	return req, nil
}

// GetDepositRequest returns the user's deposit request.
func (r *DepositReconciler) GetDepositRequest(ctx context.Context, userID int64, id uuid.UUID) (*models.DepositRequestDB, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	req, err := r.requests.GetByID(sctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// CancelDepositRequest closes a pending request on the user's behalf.
func (r *DepositReconciler) CancelDepositRequest(ctx context.Context, userID int64, id uuid.UUID) error {
	req, err := r.GetDepositRequest(ctx, userID, id)
	if err != nil {
		return err
	}

	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	err = r.requests.Cancel(sctx, req.ID, userID)
	if errors.Is(err, models.ErrStatusConflict) {
		return ErrAlreadyProcessed
	}
	if err != nil {
		return err
	}

	r.log.Infow("deposit request cancelled", "request_id", id, "user_id", userID)
	r.releaseMonitoring(ctx, id)
	return nil
}

// RegisterTransaction starts monitoring a transaction the user reports as sent.
// Confirmation and crediting happen asynchronously in the poll loop.
func (r *DepositReconciler) RegisterTransaction(ctx context.Context, s Submission) (*models.MonitoredTransaction, error) {
	s.TxID = strings.TrimSpace(s.TxID)
	if !models.IsSupportedCurrency(s.Currency) {
		return nil, ErrUnsupportedCurrency
	}
	if s.TxID == "" {
		return nil, ErrInvalidTransactionID
	}

	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	monitored, err := r.monitor.Contains(sctx, s.TxID)
	if err != nil {
		return nil, err
	}
	if monitored {
		return nil, ErrDuplicateTransaction
	}
	credited, err := r.ledger.Exists(sctx, s.TxID)
	if err != nil {
		return nil, err
	}
	if credited {
		return nil, ErrDuplicateTransaction
	}

	req, err := r.matchRequest(sctx, s)
	if err != nil {
		return nil, err
	}

	expected := req.ExpectedAmount
	if s.ExpectedAmount.IsPositive() {
		expected = s.ExpectedAmount
	}

	tx := models.MonitoredTransaction{
		TxID:             s.TxID,
		Currency:         s.Currency,
		UserID:           s.UserID,
		DepositRequestID: req.ID,
		ExpectedAmount:   expected,
		AddedAt:          r.now().UTC(),
	}
	if rate, err := r.rates.GetRate(sctx, s.Currency); err == nil {
		tx.USDAmountHint = expected.Mul(rate)
	}

	if err := r.monitor.Add(sctx, tx); err != nil {
		if errors.Is(err, models.ErrAlreadyMonitored) {
			return nil, ErrDuplicateTransaction
		}
		return nil, err
	}

	r.log.Infow("transaction registered",
		"tx_id", tx.TxID, "currency", tx.Currency, "user_id", tx.UserID, "request_id", tx.DepositRequestID)
	return &tx, nil
}

// matchRequest picks the deposit request a submission settles. An explicit
// request id must name an active request of the same user and currency;
// otherwise the most recently created active request is used.
func (r *DepositReconciler) matchRequest(ctx context.Context, s Submission) (*models.DepositRequestDB, error) {
	now := r.now()

	if s.DepositRequestID != nil {
		req, err := r.requests.GetByID(ctx, *s.DepositRequestID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNoActiveRequest
		}
		if err != nil {
			return nil, err
		}
		if req.UserID != s.UserID || req.Currency != s.Currency || !req.IsActive(now) {
			return nil, ErrNoActiveRequest
		}
		return req, nil
	}

	pending, err := r.requests.FindPending(ctx, s.UserID, s.Currency, now)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, ErrNoActiveRequest
	}
	return &pending[0], nil
}

// GetBalance returns the user's USD balance; users without credits have zero.
func (r *DepositReconciler) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	user, err := r.balances.GetByUserID(sctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// ListCredits returns the user's credited transactions, newest first.
func (r *DepositReconciler) ListCredits(ctx context.Context, userID int64) ([]models.LedgerEntryDB, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	return r.ledger.ListByUser(sctx, userID)
}
