package arbitrage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/exchange"
)

func newEngine(adapters ...*fakeAdapter) *Engine {
	reg := exchange.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	agg := NewAggregator(AggregatorConfig{Source: reg, Timeout: 100 * time.Millisecond})
	return NewEngine(agg, reg.Fees())
}

func TestGetArbitrage(t *testing.T) {
	e := newEngine(newFake("A", "100"), newFake("B", "105"), newFake("C", "102"))

	res, err := e.GetArbitrage(context.Background(), "BTCUSDT", decimal.NewFromInt(10000))
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeID("A"), res.BuyExchange)
	assert.Equal(t, domain.ExchangeID("B"), res.SellExchange)
	assert.Equal(t, "479.01", res.Profit.StringFixed(2))
}

func TestCheckValidatesBeforeNetwork(t *testing.T) {
	a, b := newFake("A", "100"), newFake("B", "105")
	e := newEngine(a, b)

	_, err := e.Check(context.Background(), "BTCUSDT", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidCapital)

	_, err = e.Check(context.Background(), "BTC", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)

	assert.Zero(t, a.calls.Load()+b.calls.Load())
}

func TestCheckKeepsSnapshotOnInsufficientQuotes(t *testing.T) {
	down := newFake("A", "100")
	down.err = domain.Unavailable(domain.ReasonBadStatus, nil)
	e := newEngine(down, newFake("B", "105"))

	report, err := e.Check(context.Background(), "BTCUSDT", decimal.NewFromInt(10000))
	assert.ErrorIs(t, err, domain.ErrInsufficientQuotes)
	assert.Nil(t, report.Result)
	assert.Equal(t, 2, report.Snapshot.Len())

	_, err = e.GetArbitrage(context.Background(), "BTCUSDT", decimal.NewFromInt(10000))
	assert.ErrorIs(t, err, domain.ErrInsufficientQuotes)
}

func TestCheckSubset(t *testing.T) {
	a, b, c := newFake("A", "100"), newFake("B", "105"), newFake("C", "90")
	e := newEngine(a, b, c)

	report, err := e.Check(context.Background(), "ETHUSDT", decimal.NewFromInt(100), "A", "B")
	require.NoError(t, err)
	require.NotNil(t, report.Result)
	assert.Equal(t, domain.ExchangeID("A"), report.Result.BuyExchange)
	assert.Zero(t, c.calls.Load())
}
