package facades

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type esploraTx struct {
	TxID   string `json:"txid"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
	} `json:"status"`
	Vout []struct {
		Address string `json:"scriptpubkey_address"`
		Value   int64  `json:"value"`
	} `json:"vout"`
}

// BTCProber queries an esplora instance (blockstream.info, mempool.space).
// The observed amount is the sum of outputs paying the deposit address; a
// transaction with no such output is failed.
type BTCProber struct {
	baseURL string
	address string
	client  *http.Client
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewBTCProber creates a prober. With an empty depositAddress every found
// transaction is failed.
func NewBTCProber(baseURL, depositAddress string, client *http.Client) *BTCProber {
	return &BTCProber{
		baseURL: strings.TrimRight(baseURL, "/"),
		address: depositAddress,
		client:  newHTTPClient(client),
		timeout: DefaultTimeout,
		log:     logger.Named("prober.btc"),
	}
}

// Probe implements Prober.
func (p *BTCProber) Probe(ctx context.Context, txID string) models.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	hash, err := chainhash.NewHashFromStr(txID)
	if err != nil || len(txID) != chainhash.MaxHashStringSize {
		p.log.Warnw("malformed txid", "tx_id", txID)
		return models.ProbeResult{Status: models.ProbeFailed}
	}

	var tx esploraTx
	err = getJSON(ctx, p.client, p.baseURL+"/tx/"+hash.String(), nil, &tx)
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return models.ProbeResult{Status: models.ProbeNotFound}
	}
	if err != nil {
		p.log.Warnw("esplora lookup failed", "tx_id", txID, "error", err)
		return models.ProbeErrorResult()
	}

	amount := p.paidAmount(tx)
	if !amount.IsPositive() {
		p.log.Warnw("transaction does not pay the deposit address", "tx_id", txID)
		return models.ProbeResult{Status: models.ProbeFailed}
	}
	if !tx.Status.Confirmed {
		return models.ProbeResult{Status: models.ProbePending, Amount: amount, Observed: true}
	}

	tip, err := p.tipHeight(ctx)
	if err != nil {
		p.log.Warnw("tip lookup failed, assuming one confirmation", "tx_id", txID, "error", err)
		return models.ProbeResult{Status: models.ProbeConfirmed, Confirmations: 1, Amount: amount, Observed: true}
	}

	confirmations := 0
	if tip >= tx.Status.BlockHeight {
		confirmations = int(tip - tx.Status.BlockHeight + 1)
	}
	return models.ProbeResult{Status: models.ProbeConfirmed, Confirmations: confirmations, Amount: amount, Observed: true}
}

func (p *BTCProber) tipHeight(ctx context.Context) (int64, error) {
	body, err := get(ctx, p.client, p.baseURL+"/blocks/tip/height", nil)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
}

func (p *BTCProber) paidAmount(tx esploraTx) decimal.Decimal {
	if p.address == "" {
		return decimal.Zero
	}
	var sats int64
	for _, out := range tx.Vout {
		if out.Address == p.address {
			sats += out.Value
		}
	}
	return decimal.New(sats, -8)
}
