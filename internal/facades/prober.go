package facades

import (
	"context"
	"sync"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
)

// Prober checks the on-chain status of one transaction. Implementations never
// return an error: every failure is normalized to models.ProbeErrorResult.
type Prober interface {
	Probe(ctx context.Context, txID string) models.ProbeResult
}

// ProberRegistry maps a currency code to the adapter that can probe it.
type ProberRegistry struct {
	mu      sync.RWMutex
	probers map[string]Prober
}

// NewProberRegistry creates an empty registry.
func NewProberRegistry() *ProberRegistry {
	return &ProberRegistry{probers: make(map[string]Prober)}
}

// Register binds a prober to one or more currencies.
func (r *ProberRegistry) Register(p Prober, currencies ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range currencies {
		r.probers[c] = p
	}
}

// Get returns the prober registered for the currency.
func (r *ProberRegistry) Get(currency string) (Prober, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.probers[currency]
	return p, ok
}

// Probe dispatches to the currency's prober. Unknown currencies yield an error result.
func (r *ProberRegistry) Probe(ctx context.Context, currency, txID string) models.ProbeResult {
	p, ok := r.Get(currency)
	if !ok {
		logger.Log.Warnw("no prober registered", "currency", currency, "tx_id", txID)
		return models.ProbeErrorResult()
	}
	return p.Probe(ctx, txID)
}
