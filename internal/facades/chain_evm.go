package facades

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EVMClient is the subset of ethclient.Client used by EVMProber.
type EVMClient interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// EVMProber probes account-model chains (Ethereum, BNB Smart Chain) over JSON-RPC.
// Confirmations are the distance between the chain head and the receipt block.
// Only native transfers to the deposit address count; anything else is failed.
type EVMProber struct {
	client  EVMClient
	address common.Address
	valid   bool
	timeout time.Duration
	log     *zap.SugaredLogger
}

// DialEVMProber connects to a JSON-RPC endpoint. API keys are part of the URL.
func DialEVMProber(rpcURL, chain, depositAddress string) (*EVMProber, error) {
	c, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, err
	}
	return NewEVMProber(c, chain, depositAddress), nil
}

// NewEVMProber wraps an existing client. An invalid deposit address makes every
// transaction fail the recipient check.
func NewEVMProber(client EVMClient, chain, depositAddress string) *EVMProber {
	p := &EVMProber{
		client:  client,
		valid:   common.IsHexAddress(depositAddress),
		timeout: DefaultTimeout,
		log:     logger.Named("prober.evm").With("chain", chain),
	}
	if p.valid {
		p.address = common.HexToAddress(depositAddress)
	} else {
		p.log.Warnw("invalid deposit address, no transaction will match", "address", depositAddress)
	}
	return p
}

// Probe implements Prober.
func (p *EVMProber) Probe(ctx context.Context, txID string) models.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	b, err := decodeHash(txID)
	if err != nil {
		p.log.Warnw("malformed transaction hash", "tx_id", txID)
		return models.ProbeResult{Status: models.ProbeFailed}
	}
	hash := common.BytesToHash(b)

	tx, isPending, err := p.client.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return models.ProbeResult{Status: models.ProbeNotFound}
	}
	if err != nil {
		p.log.Warnw("transaction lookup failed", "tx_id", txID, "error", err)
		return models.ProbeErrorResult()
	}
	if tx == nil {
		return models.ProbeResult{Status: models.ProbeNotFound}
	}
	if !p.paysDeposit(tx) {
		p.log.Warnw("transaction does not pay the deposit address", "tx_id", txID, "to", tx.To())
		return models.ProbeResult{Status: models.ProbeFailed}
	}
	amount := weiToEther(tx.Value())
	if isPending {
		return models.ProbeResult{Status: models.ProbePending, Amount: amount, Observed: true}
	}

	rec, err := p.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return models.ProbeResult{Status: models.ProbePending, Amount: amount, Observed: true}
	}
	if err != nil {
		p.log.Warnw("receipt lookup failed", "tx_id", txID, "error", err)
		return models.ProbeErrorResult()
	}
	if rec.Status == types.ReceiptStatusFailed {
		return models.ProbeResult{Status: models.ProbeFailed}
	}

	head, err := p.client.BlockNumber(ctx)
	if err != nil {
		p.log.Warnw("head lookup failed, assuming one confirmation", "tx_id", txID, "error", err)
		return models.ProbeResult{Status: models.ProbeConfirmed, Confirmations: 1, Amount: amount, Observed: true}
	}

	return models.ProbeResult{
		Status:        models.ProbeConfirmed,
		Confirmations: confirmationsAt(head, rec.BlockNumber),
		Amount:        amount,
		Observed:      true,
	}
}

// paysDeposit reports whether tx is a positive native transfer to the deposit address.
func (p *EVMProber) paysDeposit(tx *types.Transaction) bool {
	if !p.valid || tx.To() == nil {
		return false
	}
	return *tx.To() == p.address && tx.Value() != nil && tx.Value().Sign() > 0
}

func confirmationsAt(head uint64, txBlock *big.Int) int {
	if txBlock == nil || !txBlock.IsUint64() {
		return 0
	}
	b := txBlock.Uint64()
	if head < b {
		return 0
	}
	return int(head - b + 1)
}

func weiToEther(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -18)
}

// decodeHash accepts a 0x-prefixed 32-byte hex hash.
func decodeHash(s string) ([]byte, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(b) != common.HashLength {
		return nil, errors.New("transaction hash must be 32 bytes")
	}
	return b, nil
}
