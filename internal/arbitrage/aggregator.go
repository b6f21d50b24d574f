// Package arbitrage gathers concurrent price quotes for one symbol across the
// enabled exchanges and computes the fee-adjusted profit of buying on the
// cheapest venue and selling on the dearest.
package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/symbol"
)

const (
	DefaultQuoteTimeout    = 5 * time.Second
	DefaultAggregateMargin = 250 * time.Millisecond
)

// AdapterSource supplies the adapters an Aggregator fans out to.
// *exchange.Registry satisfies it.
type AdapterSource interface {
	Adapters() []domain.ExchangeAdapter
	Get(id domain.ExchangeID) (domain.ExchangeAdapter, error)
}

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	Source     AdapterSource
	Normalizer *symbol.Normalizer
	// Timeout bounds each adapter call.
	Timeout time.Duration
	// Margin is added to Timeout to bound the whole aggregation.
	Margin time.Duration
	Logger *slog.Logger
	Now    func() time.Time
}

// Aggregator fetches quotes from many exchanges in parallel.
type Aggregator struct {
	source     AdapterSource
	normalizer *symbol.Normalizer
	timeout    time.Duration
	margin     time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewAggregator creates an Aggregator. Zero durations take the defaults.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	a := &Aggregator{
		source:     cfg.Source,
		normalizer: cfg.Normalizer,
		timeout:    cfg.Timeout,
		margin:     cfg.Margin,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if a.normalizer == nil {
		a.normalizer = symbol.NewNormalizer(nil, nil)
	}
	if a.timeout <= 0 {
		a.timeout = DefaultQuoteTimeout
	}
	if a.margin <= 0 {
		a.margin = DefaultAggregateMargin
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With(slog.String("component", "aggregator"))
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Normalizer returns the symbol normalizer in use.
func (a *Aggregator) Normalizer() *symbol.Normalizer { return a.normalizer }

// FetchAll quotes canonical on every enabled exchange.
func (a *Aggregator) FetchAll(ctx context.Context, canonical string) (domain.PriceSnapshot, error) {
	return a.fetch(ctx, canonical, a.source.Adapters(), nil)
}

// FetchFrom quotes canonical on the listed exchanges only. An empty list means
// all exchanges. Listed exchanges that are not enabled, such as one named by
// an old watch entry, appear in the snapshot as disabled.
func (a *Aggregator) FetchFrom(ctx context.Context, canonical string, ids []domain.ExchangeID) (domain.PriceSnapshot, error) {
	if len(ids) == 0 {
		return a.FetchAll(ctx, canonical)
	}
	adapters := make([]domain.ExchangeAdapter, 0, len(ids))
	var disabled []domain.ExchangeQuote
	seen := make(map[domain.ExchangeID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		ad, err := a.source.Get(id)
		if errors.Is(err, domain.ErrUnknownExchange) {
			a.logger.Warn("exchange not enabled",
				slog.String("exchange", string(id)),
				slog.String("symbol", canonical),
			)
			disabled = append(disabled, domain.UnavailableQuote(id, domain.ReasonDisabled, "exchange is not enabled", 0))
			continue
		}
		if err != nil {
			return domain.PriceSnapshot{}, fmt.Errorf("arbitrage: fetch: %w", err)
		}
		adapters = append(adapters, ad)
	}
	return a.fetch(ctx, canonical, adapters, disabled)
}

type slot struct {
	idx   int
	quote domain.ExchangeQuote
}

func (a *Aggregator) fetch(ctx context.Context, canonical string, adapters []domain.ExchangeAdapter, extra []domain.ExchangeQuote) (domain.PriceSnapshot, error) {
	sym, err := a.normalizer.Validate(canonical)
	if err != nil {
		return domain.PriceSnapshot{}, err
	}
	symbols := make([]string, len(adapters))
	for i, ad := range adapters {
		if symbols[i], err = a.normalizer.Normalize(sym, ad.ID()); err != nil {
			return domain.PriceSnapshot{}, err
		}
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	// Buffered so late goroutines never block once the collector has left.
	results := make(chan slot, len(adapters))
	for i, ad := range adapters {
		go func() {
			results <- slot{idx: i, quote: a.quoteOne(fetchCtx, ad, sym, symbols[i])}
		}()
	}

	quotes := make([]domain.ExchangeQuote, len(adapters))
	filled := make([]bool, len(adapters))
	deadline := time.NewTimer(a.timeout + a.margin)
	defer deadline.Stop()

collect:
	for n := 0; n < len(adapters); n++ {
		select {
		case s := <-results:
			quotes[s.idx] = s.quote
			filled[s.idx] = true
		case <-deadline.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	elapsed := time.Since(start)
	for i, ad := range adapters {
		if filled[i] {
			continue
		}
		reason := domain.ReasonTimeout
		if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			reason = domain.ReasonNetwork
		}
		a.logger.Warn("quote not collected",
			slog.String("exchange", string(ad.ID())),
			slog.String("symbol", sym),
			slog.String("reason", string(reason)),
			slog.Duration("latency", elapsed),
		)
		quotes[i] = domain.UnavailableQuote(ad.ID(), reason, "no response before aggregation deadline", elapsed)
	}

	quotes = append(quotes, extra...)
	snap, err := domain.NewPriceSnapshot(sym, a.now(), quotes)
	if err != nil {
		return domain.PriceSnapshot{}, fmt.Errorf("arbitrage: build snapshot: %w", err)
	}
	return snap, nil
}

// quoteOne never returns an error; failures, panics included, become
// unavailable entries.
func (a *Aggregator) quoteOne(ctx context.Context, ad domain.ExchangeAdapter, canonical, exSymbol string) (q domain.ExchangeQuote) {
	qctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			latency := time.Since(start)
			a.logger.Error("adapter panicked",
				slog.String("exchange", string(ad.ID())),
				slog.String("symbol", canonical),
				slog.Any("panic", r),
			)
			q = domain.UnavailableQuote(ad.ID(), domain.ReasonMalformed, fmt.Sprintf("adapter panic: %v", r), latency)
		}
	}()

	price, err := ad.Quote(qctx, exSymbol)
	latency := time.Since(start)

	if err != nil {
		reason := domain.ReasonOf(err)
		if reason == domain.ReasonNetwork && errors.Is(qctx.Err(), context.DeadlineExceeded) {
			reason = domain.ReasonTimeout
		}
		a.logger.Warn("quote unavailable",
			slog.String("exchange", string(ad.ID())),
			slog.String("symbol", canonical),
			slog.String("reason", string(reason)),
			slog.Duration("latency", latency),
			slog.String("error", err.Error()),
		)
		return domain.UnavailableQuote(ad.ID(), reason, err.Error(), latency)
	}
	if !price.IsPositive() {
		a.logger.Warn("quote unavailable",
			slog.String("exchange", string(ad.ID())),
			slog.String("symbol", canonical),
			slog.String("reason", string(domain.ReasonInvalidQuote)),
			slog.Duration("latency", latency),
			slog.String("price", price.String()),
		)
		return domain.UnavailableQuote(ad.ID(), domain.ReasonInvalidQuote, "non-positive price "+price.String(), latency)
	}
	return domain.AvailableQuote(ad.ID(), price, latency)
}
