package facades

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// tronSolidifiedDepth is the block depth at which TRON treats a block as irreversible.
const tronSolidifiedDepth = 19

// tronTransferContract is the contract type of a native TRX transfer.
const tronTransferContract = 1

// TronUSDTContract is the mainnet Tether TRC-20 contract.
const TronUSDTContract = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

// TronAsset selects which transfers a TronProber counts. An empty Contract means
// native TRX.
type TronAsset struct {
	Symbol   string
	Contract string
}

var (
	TronTRX  = TronAsset{Symbol: "TRX"}
	TronUSDT = TronAsset{Symbol: "USDT", Contract: TronUSDTContract}
)

type tronTransactionInfo struct {
	Hash          string `json:"hash"`
	Block         int64  `json:"block"`
	Confirmed     bool   `json:"confirmed"`
	Confirmations int    `json:"confirmations"`
	ContractRet   string `json:"contractRet"`
	ContractType  int    `json:"contractType"`
	ToAddress     string `json:"toAddress"`
	ContractData  struct {
		Amount    int64  `json:"amount"`
		ToAddress string `json:"to_address"`
	} `json:"contractData"`
	TRC20TransferInfo []struct {
		ContractAddress string `json:"contract_address"`
		ToAddress       string `json:"to_address"`
		AmountStr       string `json:"amount_str"`
		Decimals        int32  `json:"decimals"`
		Symbol          string `json:"symbol"`
	} `json:"trc20TransferInfo"`
}

// TronProber queries tronscan for one asset, TRX or a TRC-20 token. The
// explorer's confirmed flag marks a solidified block. Transfers of another asset
// or to another address are reported as failed.
type TronProber struct {
	baseURL string
	apiKey  string
	asset   TronAsset
	address string
	client  *http.Client
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewTronProber creates a prober against a tronscan API base URL.
func NewTronProber(baseURL, apiKey string, asset TronAsset, depositAddress string, client *http.Client) *TronProber {
	return &TronProber{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		asset:   asset,
		address: depositAddress,
		client:  newHTTPClient(client),
		timeout: DefaultTimeout,
		log:     logger.Named("prober.tron").With("asset", asset.Symbol),
	}
}

// Probe implements Prober.
func (p *TronProber) Probe(ctx context.Context, txID string) models.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	u := p.baseURL + "/api/transaction-info?hash=" + url.QueryEscape(txID)

	var info tronTransactionInfo
	if err := getJSON(ctx, p.client, u, map[string]string{"TRON-PRO-API-KEY": p.apiKey}, &info); err != nil {
		p.log.Warnw("tronscan lookup failed", "tx_id", txID, "error", err)
		return models.ProbeErrorResult()
	}
	// tronscan answers {} for unknown hashes
	if info.Hash == "" {
		return models.ProbeResult{Status: models.ProbeNotFound}
	}
	if info.ContractRet != "" && info.ContractRet != "SUCCESS" {
		return models.ProbeResult{Status: models.ProbeFailed}
	}

	amount := p.paidAmount(info)
	if !amount.IsPositive() {
		p.log.Warnw("transaction does not pay the deposit address", "tx_id", txID, "to", info.ToAddress)
		return models.ProbeResult{Status: models.ProbeFailed}
	}
	if !info.Confirmed {
		return models.ProbeResult{Status: models.ProbePending, Confirmations: info.Confirmations, Amount: amount, Observed: true}
	}

	confirmations := info.Confirmations
	if confirmations < tronSolidifiedDepth {
		confirmations = tronSolidifiedDepth
	}
	return models.ProbeResult{Status: models.ProbeConfirmed, Confirmations: confirmations, Amount: amount, Observed: true}
}

// paidAmount sums what the transaction moved of the prober's asset to the deposit address.
func (p *TronProber) paidAmount(info tronTransactionInfo) decimal.Decimal {
	if p.address == "" {
		return decimal.Zero
	}
	if p.asset.Contract == "" {
		if info.ContractType != tronTransferContract {
			return decimal.Zero
		}
		to := info.ContractData.ToAddress
		if to == "" {
			to = info.ToAddress
		}
		if to != p.address {
			return decimal.Zero
		}
		// TRX amounts are in sun
		return decimal.New(info.ContractData.Amount, -6)
	}

	total := decimal.Zero
	for _, t := range info.TRC20TransferInfo {
		if t.ContractAddress != p.asset.Contract || t.ToAddress != p.address {
			continue
		}
		v, err := decimal.NewFromString(t.AmountStr)
		if err != nil {
			continue
		}
		total = total.Add(v.Shift(-t.Decimals))
	}
	return total
}
