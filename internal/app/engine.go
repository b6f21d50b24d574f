package app

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	"github.com/alanyoungcy/arbwatch/internal/config"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/exchange"
	"github.com/alanyoungcy/arbwatch/internal/exchange/binanceus"
	"github.com/alanyoungcy/arbwatch/internal/exchange/bitget"
	"github.com/alanyoungcy/arbwatch/internal/exchange/mexc"
	"github.com/alanyoungcy/arbwatch/internal/exchange/upbit"
	"github.com/alanyoungcy/arbwatch/internal/symbol"
)

// Core bundles the pieces of the arbitrage engine. It needs neither
// Postgres nor Redis, so one-off checks can run from the command line.
type Core struct {
	Registry   *exchange.Registry
	Normalizer *symbol.Normalizer
	Engine     *arbitrage.Engine
}

// BuildCore creates an adapter for every enabled exchange and the
// aggregator and calculator on top of them.
func BuildCore(cfg *config.Config, logger *slog.Logger) (*Core, error) {
	reg := exchange.NewRegistry()
	formats := make(map[domain.ExchangeID]symbol.Format)

	for _, id := range cfg.Exchanges.EnabledIDs() {
		venue := cfg.Exchanges.Venue(id)
		format, err := symbol.ParseFormat(venue.SymbolFormat)
		if err != nil {
			return nil, fmt.Errorf("app: exchange %s: %w", id, err)
		}
		formats[id] = format

		adapter, err := newAdapter(id, exchange.Options{
			BaseURL:       venue.BaseURL,
			MakerFee:      decimal.NewFromFloat(*venue.MakerFee),
			TakerFee:      decimal.NewFromFloat(*venue.TakerFee),
			RetryAttempts: cfg.Exchanges.RetryAttempts,
			RetryBackoff:  cfg.Exchanges.RetryBackoff.Duration,
		})
		if err != nil {
			return nil, err
		}
		reg.Register(adapter)
	}
	if len(reg.IDs()) == 0 {
		return nil, fmt.Errorf("app: no exchanges enabled")
	}

	norm := symbol.NewNormalizer(cfg.Arbitrage.QuoteSuffixes, formats)
	agg := arbitrage.NewAggregator(arbitrage.AggregatorConfig{
		Source:     reg,
		Normalizer: norm,
		Timeout:    cfg.Exchanges.Timeout.Duration,
		Margin:     cfg.Exchanges.AggregateMargin.Duration,
		Logger:     logger,
	})

	logger.Info("exchanges enabled", slog.Any("exchanges", reg.IDs()))
	return &Core{
		Registry:   reg,
		Normalizer: norm,
		Engine:     arbitrage.NewEngine(agg, reg.Fees()),
	}, nil
}

func newAdapter(id domain.ExchangeID, opts exchange.Options) (domain.ExchangeAdapter, error) {
	switch id {
	case domain.ExchangeMEXC:
		return mexc.New(opts), nil
	case domain.ExchangeBitget:
		return bitget.New(opts), nil
	case domain.ExchangeUpbit:
		return upbit.New(opts), nil
	case domain.ExchangeBinanceUS:
		return binanceus.New(opts), nil
	default:
		return nil, fmt.Errorf("app: %w: %s", domain.ErrUnknownExchange, id)
	}
}
