package facades

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// coinGeckoIDs maps currency codes to CoinGecko coin ids.
var coinGeckoIDs = map[string]string{
	models.TON:  "the-open-network",
	models.TRX:  "tron",
	models.USDT: "tether",
	models.ETH:  "ethereum",
	models.BNB:  "binancecoin",
	models.BTC:  "bitcoin",
}

// CoinGeckoFacade reads USD prices from the CoinGecko simple/price endpoint.
type CoinGeckoFacade struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewCoinGeckoFacade creates a rate source. apiKey is sent as the demo API key
// header when set.
func NewCoinGeckoFacade(baseURL, apiKey string, client *http.Client) *CoinGeckoFacade {
	return &CoinGeckoFacade{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newHTTPClient(client),
	}
}

// GetRates returns USD prices for the requested currencies in one request.
func (f *CoinGeckoFacade) GetRates(ctx context.Context, currencies []string) (map[string]decimal.Decimal, error) {
	ids := make([]string, 0, len(currencies))
	for _, c := range currencies {
		if id, ok := coinGeckoIDs[c]; ok {
			ids = append(ids, id)
		}
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")

	var resp map[string]map[string]decimal.Decimal
	err := getJSON(ctx, f.client, f.baseURL+"/api/v3/simple/price?"+q.Encode(),
		map[string]string{"x-cg-demo-api-key": f.apiKey}, &resp)
	if err != nil {
		logger.Log.Errorw("failed to fetch exchange rates from coingecko", "error", err)
		return nil, err
	}

	rates := make(map[string]decimal.Decimal, len(currencies))
	for _, c := range currencies {
		price, ok := resp[coinGeckoIDs[c]]["usd"]
		if ok && price.IsPositive() {
			rates[c] = price
		}
	}
	return rates, nil
}
