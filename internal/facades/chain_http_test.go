package facades

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveJSON(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// tonFriendly builds a bounceable-flag user-friendly address for a raw workchain and hash.
func tonFriendly(wc int8, hash []byte) string {
	b := append([]byte{0x51, byte(wc)}, hash...)
	b = append(b, 0xab, 0xcd)
	return base64.URLEncoding.EncodeToString(b)
}

func TestTONProber(t *testing.T) {
	hash := bytes.Repeat([]byte{0x5e}, 32)
	raw := "0:" + strings.ToUpper(hex.EncodeToString(hash))
	other := "0:" + strings.Repeat("11", 32)
	deposit := tonFriendly(0, hash)

	found := func(dest, value string) string {
		return `{"transactions":[{"hash":"abc","description":{"aborted":false},"in_msg":{"destination":"` + dest + `","value":"` + value + `"}}]}`
	}

	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus models.ProbeStatus
		wantConf   int
		wantAmount string
	}{
		{"found", 200, found(raw, "10000000000"), models.ProbeConfirmed, 1, "10"},
		{"found friendly destination", 200, found(deposit, "2500000000"), models.ProbeConfirmed, 1, "2.5"},
		{"other recipient", 200, found(other, "10000000000"), models.ProbeFailed, 0, "0"},
		{"zero value", 200, found(raw, "0"), models.ProbeFailed, 0, "0"},
		{"no inbound message", 200, `{"transactions":[{"hash":"abc","description":{"aborted":false}}]}`, models.ProbeFailed, 0, "0"},
		{"aborted", 200, `{"transactions":[{"hash":"abc","description":{"aborted":true}}]}`, models.ProbeFailed, 0, "0"},
		{"not found", 200, `{"transactions":[]}`, models.ProbeNotFound, 0, "0"},
		{"server error", 500, `oops`, models.ProbeError, 0, "0"},
		{"malformed body", 200, `{"transactions":`, models.ProbeError, 0, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveJSON(t, tt.status, tt.body, func(r *http.Request) {
				assert.Equal(t, "/api/v3/transactions", r.URL.Path)
				assert.Equal(t, "abc", r.URL.Query().Get("hash"))
				assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
			})
			got := NewTONProber(srv.URL, "secret", deposit, srv.Client()).Probe(context.Background(), "abc")
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantConf, got.Confirmations)
			assert.True(t, decimal.RequireFromString(tt.wantAmount).Equal(got.Amount))
			assert.Equal(t, tt.wantStatus == models.ProbeConfirmed, got.Paid())
		})
	}
}

func TestTONRawAddress(t *testing.T) {
	hash := bytes.Repeat([]byte{0xa0}, 32)
	want := "-1:" + hex.EncodeToString(hash)

	got, err := tonRawAddress("-1:" + strings.ToUpper(hex.EncodeToString(hash)))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = tonRawAddress(tonFriendly(-1, hash))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	for _, bad := range []string{"", "0:abcd", "x:" + hex.EncodeToString(hash), "not-base64!"} {
		_, err := tonRawAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestTronProber(t *testing.T) {
	const deposit = "TDepositAddr"
	trx := func(confirmed bool, confirmations int, to string) string {
		return fmt.Sprintf(`{"hash":"h","block":10,"confirmed":%t,"confirmations":%d,"contractRet":"SUCCESS","contractType":1,"toAddress":"%s","contractData":{"amount":15000000,"to_address":"%s"}}`,
			confirmed, confirmations, to, to)
	}
	trc20 := func(contract, to string) string {
		return `{"hash":"h","confirmed":true,"confirmations":30,"contractRet":"SUCCESS","contractType":31,"toAddress":"` + contract + `",
			"trc20TransferInfo":[{"contract_address":"` + contract + `","to_address":"` + to + `","amount_str":"2500000","decimals":6,"symbol":"USDT"}]}`
	}

	tests := []struct {
		name       string
		asset      TronAsset
		body       string
		wantStatus models.ProbeStatus
		wantConf   int
		wantAmount string
	}{
		{"unknown hash", TronTRX, `{}`, models.ProbeNotFound, 0, "0"},
		{"unsolidified", TronTRX, trx(false, 3, deposit), models.ProbePending, 3, "15"},
		{"solidified trx", TronTRX, trx(true, 25, deposit), models.ProbeConfirmed, 25, "15"},
		{"solidified without count", TronTRX, trx(true, 0, deposit), models.ProbeConfirmed, tronSolidifiedDepth, "15"},
		{"trx to another address", TronTRX, trx(true, 25, "TSomeoneElse"), models.ProbeFailed, 0, "0"},
		{"trx prober sees token transfer", TronTRX, trc20(TronUSDTContract, deposit), models.ProbeFailed, 0, "0"},
		{"usdt", TronUSDT, trc20(TronUSDTContract, deposit), models.ProbeConfirmed, 30, "2.5"},
		{"usdt to another address", TronUSDT, trc20(TronUSDTContract, "TSomeoneElse"), models.ProbeFailed, 0, "0"},
		{"lookalike token", TronUSDT, trc20("TFakeTether", deposit), models.ProbeFailed, 0, "0"},
		{"usdt prober sees trx transfer", TronUSDT, trx(true, 25, deposit), models.ProbeFailed, 0, "0"},
		{"reverted", TronTRX, `{"hash":"h","confirmed":true,"contractRet":"REVERT"}`, models.ProbeFailed, 0, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveJSON(t, 200, tt.body, func(r *http.Request) {
				assert.Equal(t, "/api/transaction-info", r.URL.Path)
				assert.Equal(t, "key", r.Header.Get("TRON-PRO-API-KEY"))
			})
			got := NewTronProber(srv.URL, "key", tt.asset, deposit, srv.Client()).Probe(context.Background(), "h")
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantConf, got.Confirmations)
			assert.True(t, decimal.RequireFromString(tt.wantAmount).Equal(got.Amount), "amount %s", got.Amount)
		})
	}
}

const btcTxID = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"

func TestBTCProber(t *testing.T) {
	confirmedTx := `{"txid":"` + btcTxID + `","status":{"confirmed":true,"block_height":800000},
		"vout":[{"scriptpubkey_address":"bc1qdeposit","value":150000},{"scriptpubkey_address":"bc1qchange","value":99}]}`

	newServer := func(txStatus int, txBody string, tipStatus int, tip string) *httptest.Server {
		mux := http.NewServeMux()
		mux.HandleFunc("/tx/"+btcTxID, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(txStatus)
			w.Write([]byte(txBody))
		})
		mux.HandleFunc("/blocks/tip/height", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tipStatus)
			w.Write([]byte(tip))
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)
		return srv
	}

	t.Run("confirmed", func(t *testing.T) {
		srv := newServer(200, confirmedTx, 200, "800001\n")
		got := NewBTCProber(srv.URL, "bc1qdeposit", srv.Client()).Probe(context.Background(), btcTxID)
		assert.Equal(t, models.ProbeConfirmed, got.Status)
		assert.Equal(t, 2, got.Confirmations)
		assert.True(t, decimal.RequireFromString("0.0015").Equal(got.Amount))
	})

	t.Run("tip failure is lenient", func(t *testing.T) {
		srv := newServer(200, confirmedTx, 502, "")
		got := NewBTCProber(srv.URL, "bc1qdeposit", srv.Client()).Probe(context.Background(), btcTxID)
		assert.Equal(t, models.ProbeConfirmed, got.Status)
		assert.Equal(t, 1, got.Confirmations)
		assert.True(t, got.Paid())
	})

	t.Run("mempool", func(t *testing.T) {
		srv := newServer(200, `{"txid":"x","status":{"confirmed":false},"vout":[{"scriptpubkey_address":"bc1qdeposit","value":5}]}`, 200, "1")
		got := NewBTCProber(srv.URL, "bc1qdeposit", srv.Client()).Probe(context.Background(), btcTxID)
		assert.Equal(t, models.ProbePending, got.Status)
		assert.True(t, decimal.RequireFromString("0.00000005").Equal(got.Amount))
	})

	t.Run("pays another address", func(t *testing.T) {
		srv := newServer(200, confirmedTx, 200, "800001")
		got := NewBTCProber(srv.URL, "bc1qsomeoneelse", srv.Client()).Probe(context.Background(), btcTxID)
		assert.Equal(t, models.ProbeFailed, got.Status)
		assert.False(t, got.Paid())
	})

	t.Run("no deposit address configured", func(t *testing.T) {
		srv := newServer(200, confirmedTx, 200, "800001")
		got := NewBTCProber(srv.URL, "", srv.Client()).Probe(context.Background(), btcTxID)
		assert.Equal(t, models.ProbeFailed, got.Status)
	})

	t.Run("not found", func(t *testing.T) {
		srv := newServer(404, "Transaction not found", 200, "1")
		got := NewBTCProber(srv.URL, "", srv.Client()).Probe(context.Background(), btcTxID)
		assert.Equal(t, models.ProbeNotFound, got.Status)
	})

	t.Run("malformed txid", func(t *testing.T) {
		got := NewBTCProber("http://unused", "", nil).Probe(context.Background(), "xyz")
		assert.Equal(t, models.ProbeFailed, got.Status)
	})
}
