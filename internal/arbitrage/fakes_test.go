package arbitrage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

type fakeAdapter struct {
	id    domain.ExchangeID
	price decimal.Decimal
	err   error
	delay time.Duration
	// block, when set, is waited on without honouring ctx.
	block chan struct{}
	taker decimal.Decimal
	// panicWith, when non-nil, makes Quote panic with this value.
	panicWith any

	calls atomic.Int32
	mu    sync.Mutex
	seen  []string
}

func newFake(id domain.ExchangeID, price string) *fakeAdapter {
	return &fakeAdapter{id: id, price: decimal.RequireFromString(price), taker: decimal.RequireFromString("0.001")}
}

func (f *fakeAdapter) ID() domain.ExchangeID { return f.id }

func (f *fakeAdapter) Fees() domain.FeeSchedule {
	return domain.FeeSchedule{Exchange: f.id, Taker: f.taker}
}

func (f *fakeAdapter) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, symbol)
	f.mu.Unlock()

	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.block != nil {
		<-f.block
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		}
	}
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.price, nil
}

func (f *fakeAdapter) symbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func quote(ex domain.ExchangeID, price string) domain.ExchangeQuote {
	return domain.AvailableQuote(ex, decimal.RequireFromString(price), 0)
}

func flatFees(taker string, ids ...domain.ExchangeID) domain.FeeTable {
	fees := make(domain.FeeTable, len(ids))
	for _, id := range ids {
		fees[id] = domain.FeeSchedule{Exchange: id, Taker: decimal.RequireFromString(taker)}
	}
	return fees
}
