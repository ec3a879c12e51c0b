package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req, err := f.r.CreateDepositRequest(ctx, 42, models.TON, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, "UQ-ton-deposit", req.PaymentAddress)

	_, err = f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: "0xabc"})
	require.NoError(t, err)
	f.prober.Script("0xabc", pending(0), confirmed(1))

	require.NoError(t, f.r.PollOnce(ctx))
	assert.True(t, f.balance(t, 42).IsZero())
	tx, err := f.monitor.Get(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, models.ProbePending, tx.Status)

	require.NoError(t, f.r.PollOnce(ctx))
	assert.Equal(t, "25", f.balance(t, 42).String())

	got, err := f.r.GetDepositRequest(ctx, 42, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusCompleted, got.Status)

	ok, _ := f.monitor.Contains(ctx, "0xabc")
	assert.False(t, ok)
	assert.Equal(t, 1, f.notifier.Count(models.NotificationDepositCredited))

	// nothing left to probe
	require.NoError(t, f.r.PollOnce(ctx))
	assert.Equal(t, 2, f.prober.Calls("0xabc"))
}

func TestPoll_ConfirmationThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.r.CreateDepositRequest(ctx, 42, models.ETH, decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.ETH, TxID: "0xeth"})
	require.NoError(t, err)

	n := DefaultConfirmationPolicy().Required(models.ETH)
	f.prober.Script("0xeth", paying(confirmed(n-1), "1"), paying(confirmed(n), "1"))

	require.NoError(t, f.r.PollOnce(ctx))
	assert.True(t, f.balance(t, 42).IsZero(), "N-1 confirmations must not settle")
	tx, err := f.monitor.Get(ctx, "0xeth")
	require.NoError(t, err)
	assert.Equal(t, n-1, tx.Confirmations)

	require.NoError(t, f.r.PollOnce(ctx))
	assert.Equal(t, "3000", f.balance(t, 42).String(), "N confirmations settle")
}

func TestPoll_FailedIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	registerTON(t, f, "0xbad")
	f.prober.Script("0xbad", models.ProbeResult{Status: models.ProbeFailed})

	require.NoError(t, f.r.PollOnce(ctx))

	ok, _ := f.monitor.Contains(ctx, "0xbad")
	assert.False(t, ok)
	assert.True(t, f.balance(t, 42).IsZero())
	assert.Equal(t, int64(0), f.ledgerCount(t))
}

func TestPoll_Abandonment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithDepositTimeout(48*time.Hour))
	tx := registerTON(t, f, "0xlost")
	f.prober.Script("0xlost", models.ProbeErrorResult())

	require.NoError(t, f.r.PollOnce(ctx))

	f.clock.Advance(23 * time.Hour)
	require.NoError(t, f.r.PollOnce(ctx))
	ok, _ := f.monitor.Contains(ctx, "0xlost")
	assert.True(t, ok, "still inside the staleness window")

	f.clock.Advance(time.Hour + time.Second)
	require.NoError(t, f.r.PollOnce(ctx))
	ok, _ = f.monitor.Contains(ctx, "0xlost")
	assert.False(t, ok, "abandoned after 24h")

	assert.True(t, f.balance(t, 42).IsZero())
	assert.Equal(t, int64(0), f.ledgerCount(t))
	assert.Equal(t, 0, f.notifier.Count(models.NotificationDepositCredited))

	req, err := f.r.GetDepositRequest(ctx, 42, tx.DepositRequestID)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusPending, req.Status, "abandoning a transaction leaves the request open")
}

func TestPoll_ConfirmedWithoutPaymentIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tx := registerTON(t, f, "0xzero")
	f.prober.Script("0xzero", models.ProbeResult{Status: models.ProbeConfirmed, Confirmations: 1})

	require.NoError(t, f.r.PollOnce(ctx))

	ok, _ := f.monitor.Contains(ctx, "0xzero")
	assert.False(t, ok)
	assert.True(t, f.balance(t, 42).IsZero())
	assert.Equal(t, int64(0), f.ledgerCount(t))
	assert.Equal(t, 0, f.notifier.Count(models.NotificationDepositCredited))

	req, err := f.r.GetDepositRequest(ctx, 42, tx.DepositRequestID)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusPending, req.Status)
}

func TestPoll_CreditsObservedNotClaimedAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.r.CreateDepositRequest(ctx, 42, models.TON, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = f.r.RegisterTransaction(ctx, Submission{
		UserID:         42,
		Currency:       models.TON,
		TxID:           "0xinflated",
		ExpectedAmount: decimal.NewFromInt(1_000_000),
	})
	require.NoError(t, err)
	f.prober.Script("0xinflated", paying(confirmed(1), "4"))

	require.NoError(t, f.r.PollOnce(ctx))

	assert.Equal(t, "10", f.balance(t, 42).String())
	entries, err := f.r.ListCredits(ctx, 42)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "4", entries[0].Amount.String())
}

func TestPoll_ReleasedDuringProbeIsNotSettled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tx := registerTON(t, f, "0xgone")
	f.prober.Script("0xgone", confirmed(1))

	require.NoError(t, f.monitor.Remove(ctx, "0xgone"))
	f.r.processEntry(ctx, tx)

	assert.True(t, f.balance(t, 42).IsZero())
	assert.Equal(t, int64(0), f.ledgerCount(t))
}

func TestPoll_DuplicateSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	registerTON(t, f, "0xabc")

	_, err := f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: "0xabc"})
	assert.ErrorIs(t, err, ErrDuplicateTransaction)

	f.prober.Script("0xabc", confirmed(1))
	require.NoError(t, f.r.PollOnce(ctx))

	_, err = f.r.CreateDepositRequest(ctx, 42, models.TON, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: "0xabc"})
	assert.ErrorIs(t, err, ErrDuplicateTransaction, "credited transactions stay rejected")

	assert.Equal(t, int64(1), f.ledgerCount(t))
	assert.Equal(t, "25", f.balance(t, 42).String())
}

type panickyProber struct {
	ChainProber
	bad string
}

func (p panickyProber) Probe(ctx context.Context, currency, txID string) models.ProbeResult {
	if txID == p.bad {
		panic("explorer client bug")
	}
	return p.ChainProber.Probe(ctx, currency, txID)
}

func TestPoll_PerEntryIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithWorkers(2))
	f.r.prober = panickyProber{ChainProber: f.prober, bad: "0xpanic"}

	registerTON(t, f, "0xpanic")
	registerTON(t, f, "0xerr")
	registerTON(t, f, "0xgood")
	f.prober.Script("0xerr", models.ProbeErrorResult())
	f.prober.Script("0xgood", confirmed(1))

	require.NoError(t, f.r.PollOnce(ctx))

	assert.Equal(t, "25", f.balance(t, 42).String())
	for _, id := range []string{"0xpanic", "0xerr"} {
		ok, _ := f.monitor.Contains(ctx, id)
		assert.True(t, ok, id)
	}
}

// countingProber tracks the peak number of concurrent probes.
type countingProber struct {
	mu      sync.Mutex
	active  int
	peak    int
	release chan struct{}
}

func (p *countingProber) Probe(ctx context.Context, _, _ string) models.ProbeResult {
	p.mu.Lock()
	p.active++
	if p.active > p.peak {
		p.peak = p.active
	}
	p.mu.Unlock()

	select {
	case <-p.release:
	case <-time.After(50 * time.Millisecond):
	}

	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	return pending(0)
}

func TestPoll_BoundedWorkers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithWorkers(3))
	cp := &countingProber{release: make(chan struct{})}
	f.r.prober = cp

	_, err := f.r.CreateDepositRequest(ctx, 42, models.TON, decimal.NewFromInt(10))
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		_, err := f.r.RegisterTransaction(ctx, Submission{UserID: 42, Currency: models.TON, TxID: id})
		require.NoError(t, err)
	}

	require.NoError(t, f.r.PollOnce(ctx))
	assert.LessOrEqual(t, cp.peak, 3)
	assert.GreaterOrEqual(t, cp.peak, 1)
}
