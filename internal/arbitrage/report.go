package arbitrage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// FormatReport renders a successful check as the plain-text message sent to
// chat users and printed by the CLI.
func FormatReport(report domain.ArbitrageReport) string {
	var b strings.Builder
	res := report.Result

	fmt.Fprintf(&b, "Real-time prices - %s:\n", report.Snapshot.Symbol())
	writePrices(&b, report.Snapshot, res)

	if res == nil {
		return strings.TrimRight(b.String(), "\n")
	}

	b.WriteString("\n")
	if res.NoTrade() {
		b.WriteString("No price difference between exchanges\n")
	} else {
		fmt.Fprintf(&b, "Buy on %s, sell on %s\n", res.BuyExchange, res.SellExchange)
	}
	fmt.Fprintf(&b, "Initial capital: $%s\n", res.Capital.String())
	fmt.Fprintf(&b, "Arbitrage profit: $%s\n", res.Profit.StringFixed(2))
	fmt.Fprintf(&b, "Profit margin: %s%%", res.ProfitPct.StringFixed(2))
	return b.String()
}

// FormatFailure renders a failed check, naming the reason and listing whatever
// prices were collected.
func FormatFailure(symbol string, snap domain.PriceSnapshot, err error) string {
	var b strings.Builder
	b.WriteString(FailureReason(symbol, err))
	if snap.Len() > 0 {
		fmt.Fprintf(&b, "\n\nPrices - %s:\n", snap.Symbol())
		writePrices(&b, snap, nil)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FailureReason maps an engine error to a one-line user message.
func FailureReason(symbol string, err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientQuotes):
		return "cannot compute arbitrage right now: fewer than 2 exchanges returned a price"
	case errors.Is(err, domain.ErrInvalidCapital):
		return "capital must be a positive number"
	case errors.Is(err, domain.ErrInvalidSymbol):
		return fmt.Sprintf("%s is not a valid pair, example: BTCUSDT", symbol)
	case errors.Is(err, domain.ErrUnknownExchange):
		return err.Error()
	case errors.Is(err, domain.ErrMissingFees):
		return "cannot compute arbitrage: " + err.Error()
	default:
		return "failed to get real-time data, please try later"
	}
}

func writePrices(b *strings.Builder, snap domain.PriceSnapshot, res *domain.ArbitrageResult) {
	for _, q := range snap.Quotes() {
		if !q.Available {
			fmt.Fprintf(b, "%s: unavailable (%s)\n", q.Exchange, q.Reason)
			continue
		}
		tag := ""
		if res != nil {
			switch q.Exchange {
			case res.SellExchange:
				tag = " (MAX)"
			case res.BuyExchange:
				tag = " (MIN)"
			}
		}
		fmt.Fprintf(b, "%s: $%s%s\n", q.Exchange, q.Price.String(), tag)
	}
}
