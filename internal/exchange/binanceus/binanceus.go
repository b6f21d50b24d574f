// Package binanceus implements the Binance.US price adapter on top of the
// go-binance client, pointed at the .us API root.
package binanceus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	gbinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/exchange"
)

// DefaultBaseURL is the Binance.US REST root.
const DefaultBaseURL = "https://api.binance.us"

// Adapter quotes last-trade prices from Binance.US.
type Adapter struct {
	client   *gbinance.Client
	fees     domain.FeeSchedule
	attempts int
	backoff  time.Duration
}

// New creates a Binance.US adapter using public (unsigned) endpoints.
func New(opts exchange.Options) *Adapter {
	client := gbinance.NewClient("", "")
	client.BaseURL = opts.BaseURLOr(DefaultBaseURL)
	if opts.HTTPClient != nil {
		client.HTTPClient = opts.HTTPClient
	} else {
		client.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Adapter{
		client:   client,
		fees:     opts.Fees(domain.ExchangeBinanceUS),
		attempts: opts.RetryAttempts,
		backoff:  opts.RetryBackoff,
	}
}

func (a *Adapter) ID() domain.ExchangeID { return domain.ExchangeBinanceUS }
func (a *Adapter) Fees() domain.FeeSchedule { return a.fees }

// Quote returns the latest price for symbol, e.g. "BTCUSDT".
func (a *Adapter) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var prices []*gbinance.SymbolPrice
	err := exchange.WithRetry(ctx, a.attempts, a.backoff, exchange.Retryable, func(ctx context.Context) error {
		res, err := a.client.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return classify(ctx, err)
		}
		prices = res
		return nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("binanceus: price %s: %w", symbol, err)
	}
	if len(prices) == 0 || prices[0] == nil {
		return decimal.Zero, fmt.Errorf("binanceus: price %s: %w", symbol,
			domain.Unavailable(domain.ReasonMalformed, errors.New("empty response")))
	}
	price, err := exchange.ParsePrice(prices[0].Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binanceus: price %s: %w", symbol, err)
	}
	return price, nil
}

func classify(ctx context.Context, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		// API errors are answers to a bad request; they are not retried.
		return domain.Unavailable(domain.ReasonBadStatus, &exchange.StatusError{Code: http.StatusBadRequest, Body: apiErr.Error()})
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return domain.Unavailable(domain.ReasonMalformed, err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.Unavailable(domain.ReasonTimeout, err)
	}
	return domain.Unavailable(domain.ReasonOf(err), err)
}
