package arbitrage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Engine ties the aggregator and the calculator together.
type Engine struct {
	agg  *Aggregator
	fees domain.FeeTable
}

// NewEngine creates an Engine. fees must cover every exchange the aggregator
// can return.
func NewEngine(agg *Aggregator, fees domain.FeeTable) *Engine {
	table := make(domain.FeeTable, len(fees))
	for id, f := range fees {
		table[id] = f
	}
	return &Engine{agg: agg, fees: table}
}

// GetArbitrage quotes symbol on every exchange and returns the computed result.
func (e *Engine) GetArbitrage(ctx context.Context, symbol string, capital decimal.Decimal) (domain.ArbitrageResult, error) {
	report, err := e.Check(ctx, symbol, capital)
	if err != nil {
		return domain.ArbitrageResult{}, err
	}
	return *report.Result, nil
}

// Check quotes symbol on the given exchanges (all when none are given) and
// returns the snapshot together with the result. The snapshot is populated
// even when the computation fails after quoting. Capital and symbol are
// validated before any network call.
func (e *Engine) Check(ctx context.Context, symbol string, capital decimal.Decimal, exchanges ...domain.ExchangeID) (domain.ArbitrageReport, error) {
	if !capital.IsPositive() {
		return domain.ArbitrageReport{}, fmt.Errorf("%w: got %s", domain.ErrInvalidCapital, capital)
	}
	sym, err := e.agg.Normalizer().Validate(symbol)
	if err != nil {
		return domain.ArbitrageReport{}, err
	}

	snap, err := e.agg.FetchFrom(ctx, sym, exchanges)
	if err != nil {
		return domain.ArbitrageReport{}, err
	}

	report := domain.ArbitrageReport{Snapshot: snap}
	res, err := Compute(snap, e.fees, capital)
	if err != nil {
		return report, err
	}
	report.Result = &res
	return report, nil
}

// Fees returns a copy of the engine's fee table.
func (e *Engine) Fees() domain.FeeTable {
	out := make(domain.FeeTable, len(e.fees))
	for id, f := range e.fees {
		out[id] = f
	}
	return out
}
