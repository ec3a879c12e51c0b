package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/metrics"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// Settle credits a confirmed transaction exactly once. observed is the amount the
// chain shows paid to the deposit address; it is the only amount ever credited.
//
// The balance is incremented before the ledger insert so the ledger's unique key
// stays the last gate: a losing insert reverses its own increment.
func (r *DepositReconciler) Settle(ctx context.Context, tx models.MonitoredTransaction, observed decimal.Decimal) error {
	log := r.log.With("tx_id", tx.TxID, "currency", tx.Currency, "user_id", tx.UserID)

	if !observed.IsPositive() {
		return ErrNoObservedAmount
	}

	credited, err := r.ledgerExists(ctx, tx.TxID)
	if err != nil {
		return fmt.Errorf("ledger lookup: %w", err)
	}
	if credited {
		log.Infow("transaction already credited")
		r.removeMonitored(ctx, tx.TxID)
		return ErrAlreadyProcessed
	}

	if err := r.requireOpenRequest(ctx, tx); err != nil {
		if errors.Is(err, ErrRequestClosed) {
			log.Warnw("deposit request closed before settlement, not crediting", "request_id", tx.DepositRequestID)
			r.removeMonitored(ctx, tx.TxID)
		}
		return err
	}

	amount := observed
	if !tx.ExpectedAmount.IsZero() && !amount.Equal(tx.ExpectedAmount) {
		log.Infow("observed amount differs from expected", "observed", amount, "expected", tx.ExpectedAmount)
	}

	sctx, cancel := r.storeCtx(ctx)
	rate, err := r.rates.GetRate(sctx, tx.Currency)
	cancel()
	if err != nil {
		return fmt.Errorf("rate lookup: %w", err)
	}
	usd := amount.Mul(rate)

	sctx, cancel = r.storeCtx(ctx)
	balance, err := r.balances.IncrementBalance(sctx, tx.UserID, usd)
	cancel()
	if err != nil {
		return fmt.Errorf("increment balance: %w", err)
	}

	now := r.now().UTC()
	sctx, cancel = r.storeCtx(ctx)
	err = r.ledger.Insert(sctx, models.LedgerEntryDB{
		TxID:       tx.TxID,
		Currency:   tx.Currency,
		UserID:     tx.UserID,
		Amount:     amount,
		USDAmount:  usd,
		CreditedAt: now,
	})
	cancel()
	switch {
	case errors.Is(err, models.ErrLedgerConflict):
		r.compensate(ctx, tx, usd)
		metrics.LedgerConflicts.Inc()
		log.Warnw("lost ledger race, credit reversed")
		r.removeMonitored(ctx, tx.TxID)
		return ErrAlreadyProcessed
	case err != nil:
		// the insert may have committed before the error surfaced
		written, rerr := r.ledgerExists(context.WithoutCancel(ctx), tx.TxID)
		if rerr != nil || !written {
			if rerr != nil {
				log.Errorw("ledger re-check failed after insert error, reversing credit", "error", rerr)
			}
			r.compensate(ctx, tx, usd)
			return fmt.Errorf("insert ledger entry: %w", err)
		}
		log.Warnw("ledger insert reported an error but the entry exists, keeping credit", "error", err)
	}

	sctx, cancel = r.storeCtx(ctx)
	err = r.requests.MarkCompleted(sctx, tx.DepositRequestID, models.DepositCompletion{
		TxID:         tx.TxID,
		ActualAmount: amount,
		USDAmount:    usd,
		CompletedAt:  now,
	})
	cancel()
	switch {
	case errors.Is(err, models.ErrStatusConflict):
		log.Infow("deposit request already closed, credit kept", "request_id", tx.DepositRequestID)
	case err != nil:
		log.Errorw("failed to complete deposit request", "request_id", tx.DepositRequestID, "error", err)
	}

	r.removeMonitored(ctx, tx.TxID)
	metrics.Settlements.WithLabelValues(tx.Currency).Inc()
	log.Infow("deposit credited", "amount", amount, "rate", rate, "usd_amount", usd, "balance", balance)

	r.notifier.Notify(ctx, tx.UserID, models.NotificationDepositCredited, models.NotificationData{
		DepositRequestID: tx.DepositRequestID.String(),
		Currency:         tx.Currency,
		TxID:             tx.TxID,
		Amount:           amount,
		USDAmount:        &usd,
		Balance:          &balance,
	})
	return nil
}

func (r *DepositReconciler) ledgerExists(ctx context.Context, txID string) (bool, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	return r.ledger.Exists(sctx, txID)
}

// requireOpenRequest rejects settlement against an expired, cancelled or missing
// request. A completed request still settles: another transaction may have
// completed it and this one is still the user's money.
func (r *DepositReconciler) requireOpenRequest(ctx context.Context, tx models.MonitoredTransaction) error {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	req, err := r.requests.GetByID(sctx, tx.DepositRequestID)
	if errors.Is(err, models.ErrNotFound) {
		return ErrRequestClosed
	}
	if err != nil {
		return fmt.Errorf("deposit request lookup: %w", err)
	}
	switch req.Status {
	case models.DepositStatusExpired, models.DepositStatusCancelled:
		return ErrRequestClosed
	}
	return nil
}

// compensate reverses an increment whose ledger insert did not go through.
func (r *DepositReconciler) compensate(ctx context.Context, tx models.MonitoredTransaction, usd decimal.Decimal) {
	sctx, cancel := r.storeCtx(context.WithoutCancel(ctx))
	defer cancel()

	if _, err := r.balances.IncrementBalance(sctx, tx.UserID, usd.Neg()); err != nil {
		r.log.Errorw("balance compensation failed, manual correction required",
			"tx_id", tx.TxID, "user_id", tx.UserID, "usd_amount", usd, "error", err)
	}
}

func (r *DepositReconciler) removeMonitored(ctx context.Context, txID string) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	if err := r.monitor.Remove(sctx, txID); err != nil {
		r.log.Warnw("failed to remove monitored transaction", "tx_id", txID, "error", err)
	}
}
