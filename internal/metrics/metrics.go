package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ProbeResults counts chain probes by currency and normalized outcome.
	ProbeResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deposit_probe_results_total",
			Help: "Chain probes by currency and outcome",
		},
		[]string{"currency", "status"},
	)

	// Settlements counts credited deposits by currency.
	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deposit_settlements_total",
			Help: "Credited deposits",
		},
		[]string{"currency"},
	)

	// LedgerConflicts counts settlements that lost the ledger insert race and were compensated.
	LedgerConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deposit_ledger_conflicts_total",
			Help: "Settlements compensated after a ledger uniqueness conflict",
		},
	)

	// Expirations counts deposit requests moved to expired.
	Expirations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deposit_requests_expired_total",
			Help: "Deposit requests expired by the sweeper",
		},
	)

	// Abandoned counts monitored transactions dropped after the staleness window.
	Abandoned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deposit_transactions_abandoned_total",
			Help: "Monitored transactions dropped without credit",
		},
		[]string{"currency", "reason"},
	)

	// Monitored is the size of the in-flight working set after each poll cycle.
	Monitored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "deposit_transactions_monitored",
			Help: "Transactions awaiting confirmation",
		},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ProbeResults,
			Settlements,
			LedgerConflicts,
			Expirations,
			Abandoned,
			Monitored,
		)
	})
}
