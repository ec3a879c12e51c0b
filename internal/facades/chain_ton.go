package facades

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type tonTransactionsResponse struct {
	Transactions []struct {
		Hash        string `json:"hash"`
		Description struct {
			Aborted bool `json:"aborted"`
		} `json:"description"`
		InMsg *struct {
			Destination string `json:"destination"`
			Value       string `json:"value"`
		} `json:"in_msg"`
	} `json:"transactions"`
}

// TONProber queries toncenter v3. toncenter only indexes finalized blocks, so a
// found transaction is reported as confirmed with one confirmation.
// The inbound message must land on the deposit address.
type TONProber struct {
	baseURL string
	apiKey  string
	address string
	client  *http.Client
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewTONProber creates a prober against a toncenter base URL. depositAddress may
// be raw (0:hex) or user-friendly (base64).
func NewTONProber(baseURL, apiKey, depositAddress string, client *http.Client) *TONProber {
	p := &TONProber{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newHTTPClient(client),
		timeout: DefaultTimeout,
		log:     logger.Named("prober.ton"),
	}
	raw, err := tonRawAddress(depositAddress)
	if err != nil {
		p.log.Warnw("invalid deposit address, no transaction will match", "address", depositAddress, "error", err)
	}
	p.address = raw
	return p
}

// Probe implements Prober.
func (p *TONProber) Probe(ctx context.Context, txID string) models.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	u := p.baseURL + "/api/v3/transactions?limit=1&hash=" + url.QueryEscape(txID)

	var resp tonTransactionsResponse
	if err := getJSON(ctx, p.client, u, map[string]string{"X-API-Key": p.apiKey}, &resp); err != nil {
		p.log.Warnw("toncenter lookup failed", "tx_id", txID, "error", err)
		return models.ProbeErrorResult()
	}
	if len(resp.Transactions) == 0 {
		return models.ProbeResult{Status: models.ProbeNotFound}
	}

	tx := resp.Transactions[0]
	if tx.Description.Aborted {
		return models.ProbeResult{Status: models.ProbeFailed}
	}

	if tx.InMsg == nil {
		p.log.Warnw("transaction has no inbound message", "tx_id", txID)
		return models.ProbeResult{Status: models.ProbeFailed}
	}
	dest, err := tonRawAddress(tx.InMsg.Destination)
	if err != nil || p.address == "" || dest != p.address {
		p.log.Warnw("transaction does not pay the deposit address", "tx_id", txID, "destination", tx.InMsg.Destination)
		return models.ProbeResult{Status: models.ProbeFailed}
	}
	v, err := decimal.NewFromString(tx.InMsg.Value)
	if err != nil || !v.IsPositive() {
		return models.ProbeResult{Status: models.ProbeFailed}
	}
	return models.ProbeResult{Status: models.ProbeConfirmed, Confirmations: 1, Amount: v.Shift(-9), Observed: true}
}

// tonRawAddress normalizes a TON address to lowercase "workchain:hex".
func tonRawAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("empty address")
	}
	if wc, h, ok := strings.Cut(s, ":"); ok {
		b, err := hex.DecodeString(h)
		if err != nil || len(b) != 32 {
			return "", errors.New("raw address must carry a 32-byte hash")
		}
		n, err := strconv.ParseInt(wc, 10, 8)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10) + ":" + hex.EncodeToString(b), nil
	}

	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.StdEncoding.DecodeString(s)
	}
	if err != nil {
		return "", err
	}
	// flags(1) workchain(1) hash(32) crc16(2)
	if len(b) != 36 {
		return "", errors.New("friendly address must decode to 36 bytes")
	}
	return strconv.Itoa(int(int8(b[1]))) + ":" + hex.EncodeToString(b[2:34]), nil
}
