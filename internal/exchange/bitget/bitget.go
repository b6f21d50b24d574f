// Package bitget implements the Bitget spot price adapter (API v2).
package bitget

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/exchange"
)

// DefaultBaseURL is the public Bitget REST endpoint.
const DefaultBaseURL = "https://api.bitget.com"

// codeOK is the envelope code Bitget returns on success.
const codeOK = "00000"

// Adapter quotes last-trade prices from Bitget.
type Adapter struct {
	http *exchange.HTTPClient
	fees domain.FeeSchedule
}

// New creates a Bitget adapter.
func New(opts exchange.Options) *Adapter {
	return &Adapter{
		http: exchange.NewHTTPClient(opts.BaseURLOr(DefaultBaseURL), opts),
		fees: opts.Fees(domain.ExchangeBitget),
	}
}

func (a *Adapter) ID() domain.ExchangeID { return domain.ExchangeBitget }
func (a *Adapter) Fees() domain.FeeSchedule { return a.fees }

type tickersResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Symbol string `json:"symbol"`
		LastPr string `json:"lastPr"`
	} `json:"data"`
}

// Quote returns the latest price for symbol, e.g. "BTCUSDT".
func (a *Adapter) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var resp tickersResponse
	if err := a.http.GetJSON(ctx, "/api/v2/spot/market/tickers", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("bitget: tickers %s: %w", symbol, err)
	}
	if resp.Code != codeOK {
		return decimal.Zero, fmt.Errorf("bitget: tickers %s: %w", symbol,
			domain.Unavailable(domain.ReasonMalformed, fmt.Errorf("code %s: %s", resp.Code, resp.Msg)))
	}
	if len(resp.Data) == 0 {
		return decimal.Zero, fmt.Errorf("bitget: tickers %s: %w", symbol,
			domain.Unavailable(domain.ReasonMalformed, errors.New("empty data")))
	}
	price, err := exchange.ParsePrice(resp.Data[0].LastPr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bitget: tickers %s: %w", symbol, err)
	}
	return price, nil
}
