package arbitrage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Compute finds the cheapest and dearest usable quotes in snap and returns the
// result of moving capital between them after taker fees. Ties on price go to
// the exchange whose ID sorts first.
//
// The fee formula charges both taker fees on the sale proceeds:
//
//	final = capital / buy * sell * (1 - sellTaker) * (1 - buyTaker)
func Compute(snap domain.PriceSnapshot, fees domain.FeeTable, capital decimal.Decimal) (domain.ArbitrageResult, error) {
	if !capital.IsPositive() {
		return domain.ArbitrageResult{}, fmt.Errorf("%w: got %s", domain.ErrInvalidCapital, capital)
	}

	usable := snap.Usable()
	if len(usable) < 2 {
		return domain.ArbitrageResult{}, fmt.Errorf("%w: %d of %d usable for %s",
			domain.ErrInsufficientQuotes, len(usable), snap.Len(), snap.Symbol())
	}

	// usable is ordered by exchange ID, so strict comparisons keep the first
	// exchange on ties.
	buy, sell := usable[0], usable[0]
	for _, q := range usable[1:] {
		if q.Price.LessThan(buy.Price) {
			buy = q
		}
		if q.Price.GreaterThan(sell.Price) {
			sell = q
		}
	}

	buyFees, ok := fees[buy.Exchange]
	if !ok {
		return domain.ArbitrageResult{}, fmt.Errorf("%w: %s", domain.ErrMissingFees, buy.Exchange)
	}
	sellFees, ok := fees[sell.Exchange]
	if !ok {
		return domain.ArbitrageResult{}, fmt.Errorf("%w: %s", domain.ErrMissingFees, sell.Exchange)
	}

	res := domain.ArbitrageResult{
		Symbol:       snap.Symbol(),
		BuyExchange:  buy.Exchange,
		BuyPrice:     buy.Price,
		SellExchange: sell.Exchange,
		SellPrice:    sell.Price,
		Capital:      capital,
		BuyTakerFee:  buyFees.Taker,
		SellTakerFee: sellFees.Taker,
	}

	if buy.Exchange == sell.Exchange {
		res.BuyAmount = decimal.Zero
		res.GrossAmount = capital
		res.FinalAmount = capital
		res.Profit = decimal.Zero
		res.ProfitPct = decimal.Zero
		return res, nil
	}

	res.BuyAmount = capital.Div(buy.Price)
	res.GrossAmount = res.BuyAmount.Mul(sell.Price)
	res.FinalAmount = res.GrossAmount.Mul(one.Sub(sellFees.Taker)).Mul(one.Sub(buyFees.Taker))
	res.Profit = res.FinalAmount.Sub(capital)
	res.ProfitPct = res.Profit.Div(capital).Mul(hundred)
	return res, nil
}
