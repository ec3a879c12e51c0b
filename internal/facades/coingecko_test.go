package facades

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinGeckoGetRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/simple/price", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		assert.Equal(t, "the-open-network,bitcoin", r.URL.Query().Get("ids"))
		assert.Equal(t, "key", r.Header.Get("x-cg-demo-api-key"))
		w.Write([]byte(`{"the-open-network":{"usd":2.5},"bitcoin":{"usd":65000.12}}`))
	}))
	defer srv.Close()

	f := NewCoinGeckoFacade(srv.URL, "key", srv.Client())
	rates, err := f.GetRates(context.Background(), []string{"TON", "BTC"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2.5").Equal(rates["TON"]))
	assert.True(t, decimal.RequireFromString("65000.12").Equal(rates["BTC"]))
}

func TestCoinGeckoGetRates_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewCoinGeckoFacade(srv.URL, "", srv.Client())
	_, err := f.GetRates(context.Background(), []string{"TON"})
	assert.Error(t, err)
}
