package services

import (
	"context"
	"errors"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/metrics"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"golang.org/x/sync/errgroup"
)

// PollOnce probes every monitored transaction once. Probes run on a bounded
// pool and each entry is handled independently of the others.
func (r *DepositReconciler) PollOnce(ctx context.Context) error {
	sctx, cancel := r.storeCtx(ctx)
	entries, err := r.monitor.List(sctx)
	cancel()
	if err != nil {
		r.log.Errorw("failed to list monitored transactions", "error", err)
		return err
	}
	metrics.Monitored.Set(float64(len(entries)))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, tx := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.processEntry(ctx, tx)
			return nil
		})
	}
	return g.Wait()
}

func (r *DepositReconciler) processEntry(ctx context.Context, tx models.MonitoredTransaction) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Errorw("panic while processing transaction", "tx_id", tx.TxID, "panic", v)
		}
	}()

	pctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	res := r.prober.Probe(pctx, tx.Currency, tx.TxID)
	cancel()
	metrics.ProbeResults.WithLabelValues(tx.Currency, string(res.Status)).Inc()

	switch res.Status {
	case models.ProbeConfirmed, models.ProbePending:
		if !r.policy.Satisfied(tx.Currency, res) {
			r.recordProgress(ctx, tx, res)
			return
		}
		if !res.Paid() {
			r.log.Warnw("transaction confirmed without payment to the deposit address, dropping",
				"tx_id", tx.TxID, "currency", tx.Currency, "user_id", tx.UserID)
			metrics.Abandoned.WithLabelValues(tx.Currency, "unpaid").Inc()
			r.removeMonitored(ctx, tx.TxID)
			return
		}
		current, ok := r.stillMonitored(ctx, tx.TxID)
		if !ok {
			return
		}
		err := r.Settle(ctx, current, res.Amount)
		switch {
		case err == nil, errors.Is(err, ErrAlreadyProcessed), errors.Is(err, ErrRequestClosed):
		default:
			r.log.Warnw("settlement failed, will retry", "tx_id", tx.TxID, "error", err)
		}

	case models.ProbeFailed:
		r.log.Infow("transaction failed on chain, dropping", "tx_id", tx.TxID, "currency", tx.Currency)
		metrics.Abandoned.WithLabelValues(tx.Currency, "failed").Inc()
		r.removeMonitored(ctx, tx.TxID)

	default:
		if r.now().Sub(tx.AddedAt) > r.abandonAfter {
			r.log.Warnw("transaction unresolved past staleness window, abandoning",
				"tx_id", tx.TxID, "currency", tx.Currency, "user_id", tx.UserID,
				"added_at", tx.AddedAt, "last_status", res.Status)
			metrics.Abandoned.WithLabelValues(tx.Currency, "stale").Inc()
			r.removeMonitored(ctx, tx.TxID)
			return
		}
		r.recordProgress(ctx, tx, res)
	}
}

// stillMonitored re-reads the entry so a transaction released while it was being
// probed is not settled from a stale copy.
func (r *DepositReconciler) stillMonitored(ctx context.Context, txID string) (models.MonitoredTransaction, bool) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	current, err := r.monitor.Get(sctx, txID)
	if errors.Is(err, models.ErrNotFound) {
		r.log.Infow("transaction released during probe, skipping settlement", "tx_id", txID)
		return models.MonitoredTransaction{}, false
	}
	if err != nil {
		r.log.Warnw("failed to re-read monitored transaction, will retry", "tx_id", txID, "error", err)
		return models.MonitoredTransaction{}, false
	}
	return *current, true
}

func (r *DepositReconciler) recordProgress(ctx context.Context, tx models.MonitoredTransaction, res models.ProbeResult) {
	if tx.Status == res.Status && tx.Confirmations == res.Confirmations {
		return
	}
	tx.Status = res.Status
	tx.Confirmations = res.Confirmations

	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	err := r.monitor.Update(sctx, tx)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		r.log.Warnw("failed to record probe progress", "tx_id", tx.TxID, "error", err)
	}
}
