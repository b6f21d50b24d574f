// Package upbit implements the Upbit price adapter. Upbit names markets
// quote-first, so the symbol it receives looks like "USDT-BTC".
package upbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/exchange"
)

// DefaultBaseURL is the public Upbit REST endpoint.
const DefaultBaseURL = "https://api.upbit.com"

// Adapter quotes last-trade prices from Upbit.
type Adapter struct {
	http *exchange.HTTPClient
	fees domain.FeeSchedule
}

// New creates an Upbit adapter.
func New(opts exchange.Options) *Adapter {
	return &Adapter{
		http: exchange.NewHTTPClient(opts.BaseURLOr(DefaultBaseURL), opts),
		fees: opts.Fees(domain.ExchangeUpbit),
	}
}

func (a *Adapter) ID() domain.ExchangeID { return domain.ExchangeUpbit }
func (a *Adapter) Fees() domain.FeeSchedule { return a.fees }

type ticker struct {
	Market     string      `json:"market"`
	TradePrice json.Number `json:"trade_price"`
}

// Quote returns the latest trade price for market, e.g. "USDT-BTC".
func (a *Adapter) Quote(ctx context.Context, market string) (decimal.Decimal, error) {
	var resp []ticker
	if err := a.http.GetJSON(ctx, "/v1/ticker", url.Values{"markets": {market}}, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("upbit: ticker %s: %w", market, err)
	}
	if len(resp) == 0 {
		return decimal.Zero, fmt.Errorf("upbit: ticker %s: %w", market,
			domain.Unavailable(domain.ReasonMalformed, errors.New("empty response")))
	}
	price, err := exchange.ParsePrice(resp[0].TradePrice.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("upbit: ticker %s: %w", market, err)
	}
	return price, nil
}
