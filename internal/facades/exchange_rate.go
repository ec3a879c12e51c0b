package facades

import (
	"context"
	"fmt"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	pb "github.com/sbilibin2017/proto-exchange/exchange"
	"github.com/shopspring/decimal"
)

const quoteCurrency = "USD"

// ExchangeRatesGRPCFacade reads USD rates from the exchanger service over gRPC.
type ExchangeRatesGRPCFacade struct {
	client pb.ExchangeServiceClient
}

// NewExchangeRatesGRPCFacade creates a new facade with a gRPC client.
func NewExchangeRatesGRPCFacade(client pb.ExchangeServiceClient) *ExchangeRatesGRPCFacade {
	return &ExchangeRatesGRPCFacade{client: client}
}

// GetRates returns the USD rate of every requested currency the exchanger knows.
// The bulk listing is tried first; currencies missing from it are asked for one by one.
func (f *ExchangeRatesGRPCFacade) GetRates(ctx context.Context, currencies []string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(currencies))

	resp, err := f.client.GetExchangeRates(ctx, &pb.Empty{})
	if err != nil {
		logger.Log.Warnw("failed to fetch exchange rates via gRPC", "error", err)
	} else {
		for _, c := range currencies {
			if r, ok := resp.Rates[c]; ok && r > 0 {
				rates[c] = decimal.NewFromFloat32(r)
			}
		}
	}

	var lastErr error
	for _, c := range currencies {
		if _, ok := rates[c]; ok {
			continue
		}
		rate, err := f.GetRate(ctx, c)
		if err != nil {
			lastErr = err
			continue
		}
		rates[c] = rate
	}

	if len(rates) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return rates, nil
}

// GetRate fetches the USD rate for one currency.
func (f *ExchangeRatesGRPCFacade) GetRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	req := &pb.CurrencyRequest{
		FromCurrency: currency,
		ToCurrency:   quoteCurrency,
	}

	resp, err := f.client.GetExchangeRateForCurrency(ctx, req)
	if err != nil {
		logger.Log.Errorw("failed to fetch exchange rate for currency via gRPC",
			"from", currency, "to", quoteCurrency, "error", err)
		return decimal.Zero, err
	}
	if resp.Rate <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive rate %v for %s", resp.Rate, currency)
	}

	return decimal.NewFromFloat32(resp.Rate), nil
}
