package arbitrage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snapshot(t *testing.T, quotes ...domain.ExchangeQuote) domain.PriceSnapshot {
	t.Helper()
	snap, err := domain.NewPriceSnapshot("BTCUSDT", time.Unix(1700000000, 0), quotes)
	require.NoError(t, err)
	return snap
}

func TestComputeBuysLowSellsHigh(t *testing.T) {
	snap := snapshot(t, quote("A", "100"), quote("B", "105"), quote("C", "102"))

	res, err := Compute(snap, flatFees("0.001", "A", "B", "C"), dec("10000"))
	require.NoError(t, err)

	assert.Equal(t, domain.ExchangeID("A"), res.BuyExchange)
	assert.Equal(t, domain.ExchangeID("B"), res.SellExchange)
	assert.True(t, res.BuyAmount.Equal(dec("100")), res.BuyAmount.String())
	assert.True(t, res.GrossAmount.Equal(dec("10500")), res.GrossAmount.String())
	assert.True(t, res.FinalAmount.Equal(dec("10479.0105")), res.FinalAmount.String())
	assert.True(t, res.Profit.Equal(dec("479.0105")), res.Profit.String())
	assert.True(t, res.ProfitPct.Equal(dec("4.790105")), res.ProfitPct.String())
	assert.Equal(t, "4.79", res.ProfitPct.StringFixed(2))
	assert.False(t, res.NoTrade())
}

func TestComputeInsufficientQuotes(t *testing.T) {
	snap := snapshot(t,
		domain.UnavailableQuote("A", domain.ReasonTimeout, "", 0),
		quote("B", "105"),
	)
	_, err := Compute(snap, flatFees("0.001", "A", "B"), dec("10000"))
	assert.ErrorIs(t, err, domain.ErrInsufficientQuotes)

	_, err = Compute(snapshot(t), nil, dec("1"))
	assert.ErrorIs(t, err, domain.ErrInsufficientQuotes)
}

func TestComputeEqualPricesTieBreak(t *testing.T) {
	snap := snapshot(t, quote("B", "100"), quote("A", "100"))

	res, err := Compute(snap, flatFees("0.001", "A", "B"), dec("10000"))
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeID("A"), res.BuyExchange)
	assert.Equal(t, domain.ExchangeID("A"), res.SellExchange)
	assert.True(t, res.NoTrade())
	assert.True(t, res.Profit.IsZero())
	assert.True(t, res.BuyAmount.IsZero())
	assert.True(t, res.FinalAmount.Equal(dec("10000")))
}

func TestComputeTieBreakPicksFirstExchange(t *testing.T) {
	snap := snapshot(t, quote("C", "100"), quote("B", "105"), quote("A", "105"), quote("D", "100"))

	res, err := Compute(snap, flatFees("0.001", "A", "B", "C", "D"), dec("500"))
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeID("C"), res.BuyExchange)
	assert.Equal(t, domain.ExchangeID("A"), res.SellExchange)
}

func TestComputeIgnoresUnusableQuotes(t *testing.T) {
	snap := snapshot(t,
		quote("A", "100"),
		domain.UnavailableQuote("B", domain.ReasonTimeout, "", 0),
		quote("C", "101"),
		quote("D", "103"),
		domain.UnavailableQuote("E", domain.ReasonInvalidQuote, "", 0),
	)

	res, err := Compute(snap, flatFees("0.001", "A", "C", "D"), dec("10000"))
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeID("A"), res.BuyExchange)
	assert.Equal(t, domain.ExchangeID("D"), res.SellExchange)
}

func TestComputeValidatesCapitalFirst(t *testing.T) {
	for _, c := range []string{"0", "-5"} {
		_, err := Compute(snapshot(t), nil, dec(c))
		assert.ErrorIs(t, err, domain.ErrInvalidCapital, c)
	}
}

func TestComputeMissingFees(t *testing.T) {
	snap := snapshot(t, quote("A", "100"), quote("B", "105"))

	_, err := Compute(snap, flatFees("0.001", "A"), dec("10000"))
	assert.ErrorIs(t, err, domain.ErrMissingFees)
}

func TestComputeUsesEachSideTakerFee(t *testing.T) {
	snap := snapshot(t, quote("Bitget", "100"), quote("BinanceUS", "105"))
	fees := domain.FeeTable{
		"Bitget":    {Exchange: "Bitget", Taker: dec("0.0008")},
		"BinanceUS": {Exchange: "BinanceUS", Taker: dec("0.001")},
	}

	res, err := Compute(snap, fees, dec("10000"))
	require.NoError(t, err)
	assert.True(t, res.FinalAmount.Equal(dec("10481.1084")), res.FinalAmount.String())
	assert.True(t, res.BuyTakerFee.Equal(dec("0.0008")))
	assert.True(t, res.SellTakerFee.Equal(dec("0.001")))
}

func TestComputeIsDeterministic(t *testing.T) {
	snap := snapshot(t, quote("A", "0.00031337"), quote("B", "0.00031999"), quote("C", "0.0003201"))
	fees := flatFees("0.00075", "A", "B", "C")

	first, err := Compute(snap, fees, dec("12345.67"))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Compute(snap, fees, dec("12345.67"))
		require.NoError(t, err)
		assert.Equal(t, first.FinalAmount.String(), again.FinalAmount.String())
		assert.Equal(t, first.ProfitPct.String(), again.ProfitPct.String())
	}
}
