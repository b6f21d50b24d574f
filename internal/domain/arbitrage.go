package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArbitrageResult is the outcome of buying on the cheapest exchange and
// selling on the most expensive one. When BuyExchange equals SellExchange no
// transaction takes place and Profit is zero.
type ArbitrageResult struct {
	Symbol       string          `json:"symbol"`
	BuyExchange  ExchangeID      `json:"buy_exchange"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	SellExchange ExchangeID      `json:"sell_exchange"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	Capital      decimal.Decimal `json:"capital"`
	BuyAmount    decimal.Decimal `json:"buy_amount"`
	GrossAmount  decimal.Decimal `json:"gross_amount"`
	FinalAmount  decimal.Decimal `json:"final_amount"`
	Profit       decimal.Decimal `json:"profit"`
	ProfitPct    decimal.Decimal `json:"profit_pct"`
	BuyTakerFee  decimal.Decimal `json:"buy_taker_fee"`
	SellTakerFee decimal.Decimal `json:"sell_taker_fee"`
}

// NoTrade reports whether the result is the degenerate single-price case.
func (r ArbitrageResult) NoTrade() bool {
	return r.BuyExchange == r.SellExchange
}

// ArbitrageReport pairs a result with the snapshot it was computed from.
// Result is nil when the computation failed.
type ArbitrageReport struct {
	Snapshot PriceSnapshot    `json:"snapshot"`
	Result   *ArbitrageResult `json:"result,omitempty"`
}

// CheckSource records which front end triggered a check.
type CheckSource string

const (
	SourceAPI     CheckSource = "api"
	SourceBot     CheckSource = "bot"
	SourceMonitor CheckSource = "monitor"
	SourceCLI     CheckSource = "cli"
)

// ArbitrageCheck is one entry of the check log.
type ArbitrageCheck struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Source    CheckSource     `json:"source"`
	Capital   decimal.Decimal `json:"capital"`
	Report    ArbitrageReport `json:"report"`
	Error     string          `json:"error,omitempty"`
	CheckedAt time.Time       `json:"checked_at"`
}
