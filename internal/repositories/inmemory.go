package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// InMemoryStore is a concurrency-safe store for deposit requests, ledger entries
// and balances. It mirrors the PostgreSQL repositories and is used for tests and
// local runs without a database.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]models.DepositRequestDB
	ledger   map[string]models.LedgerEntryDB
	users    map[int64]models.UserDB
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests: make(map[uuid.UUID]models.DepositRequestDB),
		ledger:   make(map[string]models.LedgerEntryDB),
		users:    make(map[int64]models.UserDB),
	}
}

// Create inserts a deposit request.
func (s *InMemoryStore) Create(_ context.Context, req *models.DepositRequestDB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = *req
	return nil
}

// GetByID returns a copy of the deposit request or models.ErrNotFound.
func (s *InMemoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.DepositRequestDB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &req, nil
}

// FindPending returns active requests for the user and currency, newest first.
func (s *InMemoryStore) FindPending(_ context.Context, userID int64, currency string, now time.Time) ([]models.DepositRequestDB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DepositRequestDB
	for _, req := range s.requests {
		if req.UserID == userID && req.Currency == currency && req.IsActive(now) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MarkCompleted moves a pending request to completed.
func (s *InMemoryStore) MarkCompleted(_ context.Context, id uuid.UUID, c models.DepositCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != models.DepositStatusPending {
		return models.ErrStatusConflict
	}
	txID, completedAt := c.TxID, c.CompletedAt
	req.Status = models.DepositStatusCompleted
	req.MatchedTxID = &txID
	req.ActualAmount = decimal.NewNullDecimal(c.ActualAmount)
	req.USDAmount = decimal.NewNullDecimal(c.USDAmount)
	req.CompletedAt = &completedAt
	s.requests[id] = req
	return nil
}

// MarkExpired moves a pending request whose expiry has passed to expired.
func (s *InMemoryStore) MarkExpired(_ context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != models.DepositStatusPending || req.ExpiresAt.After(now) {
		return models.ErrStatusConflict
	}
	req.Status = models.DepositStatusExpired
	s.requests[id] = req
	return nil
}

// Cancel moves the user's pending request to cancelled.
func (s *InMemoryStore) Cancel(_ context.Context, id uuid.UUID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.UserID != userID || req.Status != models.DepositStatusPending {
		return models.ErrStatusConflict
	}
	req.Status = models.DepositStatusCancelled
	s.requests[id] = req
	return nil
}

// ListExpired returns pending requests whose expiry is at or before now, oldest first.
func (s *InMemoryStore) ListExpired(_ context.Context, now time.Time, limit int) ([]models.DepositRequestDB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DepositRequestDB
	for _, req := range s.requests {
		if req.Status == models.DepositStatusPending && !req.ExpiresAt.After(now) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Exists reports whether a ledger entry exists for the transaction.
func (s *InMemoryStore) Exists(_ context.Context, txID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ledger[txID]
	return ok, nil
}

// Insert writes a ledger entry, failing with models.ErrLedgerConflict on a duplicate TxID.
func (s *InMemoryStore) Insert(_ context.Context, e models.LedgerEntryDB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledger[e.TxID]; ok {
		return models.ErrLedgerConflict
	}
	s.ledger[e.TxID] = e
	return nil
}

// Count returns the number of ledger entries.
func (s *InMemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.ledger)), nil
}

// ListByUser returns the user's ledger entries, newest first.
func (s *InMemoryStore) ListByUser(_ context.Context, userID int64) ([]models.LedgerEntryDB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.LedgerEntryDB
	for _, e := range s.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreditedAt.After(out[j].CreditedAt) })
	return out, nil
}

// GetByUserID returns the user's balance record or models.ErrNotFound.
func (s *InMemoryStore) GetByUserID(_ context.Context, userID int64) (*models.UserDB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

// IncrementBalance adds amount to the user's balance under the store lock.
func (s *InMemoryStore) IncrementBalance(_ context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	u, ok := s.users[userID]
	if !ok {
		u = models.UserDB{UserID: userID, Balance: decimal.Zero, CreatedAt: now}
	}
	u.Balance = u.Balance.Add(amount)
	u.UpdatedAt = now
	s.users[userID] = u
	return u.Balance, nil
}

// InMemoryMonitoringStore is the process-local monitoring working set.
type InMemoryMonitoringStore struct {
	mu  sync.RWMutex
	txs map[string]models.MonitoredTransaction
}

// NewInMemoryMonitoringStore creates an empty working set.
func NewInMemoryMonitoringStore() *InMemoryMonitoringStore {
	return &InMemoryMonitoringStore{txs: make(map[string]models.MonitoredTransaction)}
}

// Add stores the transaction unless it is already tracked.
func (m *InMemoryMonitoringStore) Add(_ context.Context, tx models.MonitoredTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[tx.TxID]; ok {
		return models.ErrAlreadyMonitored
	}
	m.txs[tx.TxID] = tx
	return nil
}

// Get returns a tracked transaction or models.ErrNotFound.
func (m *InMemoryMonitoringStore) Get(_ context.Context, txID string) (*models.MonitoredTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[txID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &tx, nil
}

// Contains reports whether the transaction is tracked.
func (m *InMemoryMonitoringStore) Contains(_ context.Context, txID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.txs[txID]
	return ok, nil
}

// Update overwrites a tracked transaction. Removed entries stay removed.
func (m *InMemoryMonitoringStore) Update(_ context.Context, tx models.MonitoredTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[tx.TxID]; !ok {
		return models.ErrNotFound
	}
	m.txs[tx.TxID] = tx
	return nil
}

// Remove drops the transaction.
func (m *InMemoryMonitoringStore) Remove(_ context.Context, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.txs, txID)
	return nil
}

// List returns a snapshot of every tracked transaction.
func (m *InMemoryMonitoringStore) List(_ context.Context) ([]models.MonitoredTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.MonitoredTransaction, 0, len(m.txs))
	for _, tx := range m.txs {
		out = append(out, tx)
	}
	return out, nil
}
