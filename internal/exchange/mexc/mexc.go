// Package mexc implements the MEXC spot price adapter.
package mexc

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/exchange"
)

// DefaultBaseURL is the public MEXC REST endpoint.
const DefaultBaseURL = "https://api.mexc.com"

// Adapter quotes last-trade prices from MEXC.
type Adapter struct {
	http *exchange.HTTPClient
	fees domain.FeeSchedule
}

// New creates a MEXC adapter.
func New(opts exchange.Options) *Adapter {
	return &Adapter{
		http: exchange.NewHTTPClient(opts.BaseURLOr(DefaultBaseURL), opts),
		fees: opts.Fees(domain.ExchangeMEXC),
	}
}

func (a *Adapter) ID() domain.ExchangeID { return domain.ExchangeMEXC }
func (a *Adapter) Fees() domain.FeeSchedule { return a.fees }

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Quote returns the latest price for symbol, e.g. "BTCUSDT".
func (a *Adapter) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var resp tickerPrice
	if err := a.http.GetJSON(ctx, "/api/v3/ticker/price", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("mexc: ticker %s: %w", symbol, err)
	}
	price, err := exchange.ParsePrice(resp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("mexc: ticker %s: %w", symbol, err)
	}
	return price, nil
}
