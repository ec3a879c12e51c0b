package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/repositories"
	"github.com/shopspring/decimal"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// scriptedProber replays a per-transaction sequence of results and then
// repeats the last one.
type scriptedProber struct {
	mu      sync.Mutex
	scripts map[string][]models.ProbeResult
	calls   map[string]int
}

func newScriptedProber() *scriptedProber {
	return &scriptedProber{scripts: map[string][]models.ProbeResult{}, calls: map[string]int{}}
}

func (p *scriptedProber) Script(txID string, results ...models.ProbeResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[txID] = results
}

func (p *scriptedProber) Probe(_ context.Context, _ string, txID string) models.ProbeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[txID]++
	s := p.scripts[txID]
	if len(s) == 0 {
		return models.ProbeResult{Status: models.ProbeNotFound}
	}
	res := s[0]
	if len(s) > 1 {
		p.scripts[txID] = s[1:]
	}
	return res
}

func (p *scriptedProber) Calls(txID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[txID]
}

func pending(n int) models.ProbeResult {
	return models.ProbeResult{Status: models.ProbePending, Confirmations: n, Amount: decimal.NewFromInt(10), Observed: true}
}

func confirmed(n int) models.ProbeResult {
	return models.ProbeResult{Status: models.ProbeConfirmed, Confirmations: n, Amount: decimal.NewFromInt(10), Observed: true}
}

// paying overrides the amount a result reports as paid to the deposit address.
func paying(res models.ProbeResult, amount string) models.ProbeResult {
	res.Amount = decimal.RequireFromString(amount)
	res.Observed = true
	return res
}

type staticRates map[string]decimal.Decimal

func (s staticRates) GetRate(_ context.Context, currency string) (decimal.Decimal, error) {
	r, ok := s[currency]
	if !ok {
		return decimal.Zero, ErrRateUnavailable
	}
	return r, nil
}

type sentNotification struct {
	UserID  int64
	Kind    models.NotificationKind
	Payload models.NotificationData
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, kind models.NotificationKind, payload models.NotificationData) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Kind: kind, Payload: payload})
}

func (n *recordingNotifier) Count(kind models.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.Kind == kind {
			c++
		}
	}
	return c
}

var testAddresses = map[string]string{
	models.TON: "UQ-ton-deposit",
	models.ETH: "0xdeposit",
	models.TRX: "T-deposit",
}

type fixture struct {
	store    *repositories.InMemoryStore
	monitor  *repositories.InMemoryMonitoringStore
	prober   *scriptedProber
	notifier *recordingNotifier
	clock    *testClock
	r        *DepositReconciler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    repositories.NewInMemoryStore(),
		monitor:  repositories.NewInMemoryMonitoringStore(),
		prober:   newScriptedProber(),
		notifier: &recordingNotifier{},
		clock:    newTestClock(),
	}
	rates := staticRates{
		models.TON: decimal.RequireFromString("2.5"),
		models.ETH: decimal.NewFromInt(3000),
	}
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.r = NewDepositReconciler(f.store, f.store, f.store, f.monitor, f.prober, rates, f.notifier, testAddresses, opts...)
	return f
}

func (f *fixture) balance(t *testing.T, userID int64) decimal.Decimal {
	t.Helper()
	b, err := f.r.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func (f *fixture) ledgerCount(t *testing.T) int64 {
	t.Helper()
	n, err := f.store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// decimalMatcher compares decimals by value, ignoring exponent.
type decimalMatcher struct{ want decimal.Decimal }

func (m decimalMatcher) Matches(x interface{}) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalMatcher) String() string { return "is decimal " + m.want.String() }

func decEq(s string) gomock.Matcher {
	return decimalMatcher{want: decimal.RequireFromString(s)}
}
