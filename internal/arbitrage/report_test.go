package arbitrage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func TestFormatReport(t *testing.T) {
	snap := snapshot(t,
		quote(domain.ExchangeBinanceUS, "105"),
		quote(domain.ExchangeBitget, "100"),
		quote(domain.ExchangeMEXC, "102"),
		domain.UnavailableQuote(domain.ExchangeUpbit, domain.ReasonTimeout, "", 0),
	)
	fees := domain.FeeTable{
		domain.ExchangeBinanceUS: {Exchange: domain.ExchangeBinanceUS, Taker: dec("0.001")},
		domain.ExchangeBitget:    {Exchange: domain.ExchangeBitget, Taker: dec("0.0008")},
		domain.ExchangeMEXC:      {Exchange: domain.ExchangeMEXC, Taker: dec("0.001")},
	}
	res, err := Compute(snap, fees, dec("10000"))
	require.NoError(t, err)

	want := `Real-time prices - BTCUSDT:
BinanceUS: $105 (MAX)
Bitget: $100 (MIN)
MEXC: $102
Upbit: unavailable (timeout)

Buy on Bitget, sell on BinanceUS
Initial capital: $10000
Arbitrage profit: $481.11
Profit margin: 4.81%`
	assert.Equal(t, want, FormatReport(domain.ArbitrageReport{Snapshot: snap, Result: &res}))
}

func TestFormatReportNoTrade(t *testing.T) {
	snap := snapshot(t, quote("A", "100"), quote("B", "100"))
	res, err := Compute(snap, flatFees("0.001", "A", "B"), dec("50"))
	require.NoError(t, err)

	out := FormatReport(domain.ArbitrageReport{Snapshot: snap, Result: &res})
	assert.Contains(t, out, "No price difference between exchanges")
	assert.Contains(t, out, "Arbitrage profit: $0.00")
}

func TestFormatFailure(t *testing.T) {
	snap := snapshot(t,
		domain.UnavailableQuote("A", domain.ReasonNetwork, "", 0),
		quote("B", "105"),
	)
	err := fmt.Errorf("check: %w", domain.ErrInsufficientQuotes)

	out := FormatFailure("BTCUSDT", snap, err)
	assert.Equal(t, "cannot compute arbitrage right now: fewer than 2 exchanges returned a price\n\n"+
		"Prices - BTCUSDT:\nA: unavailable (network)\nB: $105", out)

	assert.Equal(t, "BTC is not a valid pair, example: BTCUSDT",
		FormatFailure("BTC", domain.PriceSnapshot{}, domain.ErrInvalidSymbol))
	assert.NotContains(t, FormatFailure("BTCUSDT", snap, assert.AnError), "profit")
}
