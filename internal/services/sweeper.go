package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/metrics"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
)

// SweepExpired expires every pending request past its deadline. Only the caller
// that wins the conditional transition notifies the user, so concurrent sweeps
// and settlements never double-report. It returns the number of requests expired.
func (r *DepositReconciler) SweepExpired(ctx context.Context) (int, error) {
	now := r.now().UTC()

	sctx, cancel := r.storeCtx(ctx)
	due, err := r.requests.ListExpired(sctx, now, r.sweepBatch)
	cancel()
	if err != nil {
		r.log.Errorw("failed to list expired deposit requests", "error", err)
		return 0, err
	}

	expired := 0
	for _, req := range due {
		sctx, cancel := r.storeCtx(ctx)
		err := r.requests.MarkExpired(sctx, req.ID, now)
		cancel()
		if errors.Is(err, models.ErrStatusConflict) {
			continue
		}
		if err != nil {
			r.log.Errorw("failed to expire deposit request", "request_id", req.ID, "error", err)
			continue
		}

		expired++
		metrics.Expirations.Inc()
		r.log.Infow("deposit request expired", "request_id", req.ID, "user_id", req.UserID, "currency", req.Currency)

		r.releaseMonitoring(ctx, req.ID)
		r.notifier.Notify(ctx, req.UserID, models.NotificationDepositExpired, models.NotificationData{
			DepositRequestID: req.ID.String(),
			Currency:         req.Currency,
			Amount:           req.ExpectedAmount,
		})
	}
	return expired, nil
}

// releaseMonitoring stops monitoring every transaction of a closed request,
// whatever its last status. Settlement also refuses closed requests, so a
// confirmation that lands after the close is never credited.
func (r *DepositReconciler) releaseMonitoring(ctx context.Context, requestID uuid.UUID) {
	sctx, cancel := r.storeCtx(ctx)
	entries, err := r.monitor.List(sctx)
	cancel()
	if err != nil {
		r.log.Warnw("failed to list monitored transactions for release", "request_id", requestID, "error", err)
		return
	}

	for _, tx := range entries {
		if tx.DepositRequestID != requestID {
			continue
		}
		r.log.Infow("releasing monitored transaction", "tx_id", tx.TxID, "request_id", requestID, "last_status", tx.Status)
		r.removeMonitored(ctx, tx.TxID)
	}
}
