package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	rediscache "github.com/alanyoungcy/arbwatch/internal/cache/redis"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/exchange"
	"github.com/alanyoungcy/arbwatch/internal/store/memory"
	"github.com/alanyoungcy/arbwatch/internal/symbol"
)

type priceAdapter struct {
	id    domain.ExchangeID
	mu    sync.Mutex
	price decimal.Decimal
	err   error
	calls int
}

func (a *priceAdapter) ID() domain.ExchangeID { return a.id }

func (a *priceAdapter) Fees() domain.FeeSchedule {
	return domain.FeeSchedule{Exchange: a.id, Taker: decimal.RequireFromString("0.001")}
}

func (a *priceAdapter) Quote(context.Context, string) (decimal.Decimal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return decimal.Zero, a.err
	}
	return a.price, nil
}

func (a *priceAdapter) set(price string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if price != "" {
		a.price = decimal.RequireFromString(price)
	}
	a.err = err
}

func (a *priceAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type chatMessage struct {
	chatID, text string
}

type fakeChat struct {
	mu   sync.Mutex
	sent []chatMessage
	err  error
}

func (f *fakeChat) SendMessage(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, chatMessage{chatID, text})
	return nil
}

func (f *fakeChat) messages() []chatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chatMessage(nil), f.sent...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(_ context.Context, event, title, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event+":"+title)
	return nil
}

var errBoom = errors.New("boom")

type testEnv struct {
	store    *memory.Store
	mr       *miniredis.Miniredis
	redis    *rediscache.Client
	adapters map[domain.ExchangeID]*priceAdapter
	registry *exchange.Registry
	engine   *arbitrage.Engine
	arb      *ArbService
	watch    *WatchlistService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv wires the services over in-memory stores, miniredis and three
// adapters quoting MEXC 100, Bitget 105 and BinanceUS 102.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	rc := rediscache.Wrap(rdb)

	adapters := map[domain.ExchangeID]*priceAdapter{
		domain.ExchangeMEXC:      {id: domain.ExchangeMEXC, price: decimal.NewFromInt(100)},
		domain.ExchangeBitget:    {id: domain.ExchangeBitget, price: decimal.NewFromInt(105)},
		domain.ExchangeBinanceUS: {id: domain.ExchangeBinanceUS, price: decimal.NewFromInt(102)},
	}
	reg := exchange.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	norm := symbol.NewNormalizer(nil, nil)
	agg := arbitrage.NewAggregator(arbitrage.AggregatorConfig{Source: reg, Normalizer: norm, Logger: discardLogger()})
	engine := arbitrage.NewEngine(agg, reg.Fees())

	store := memory.New()
	return &testEnv{
		store:    store,
		mr:       mr,
		redis:    rc,
		adapters: adapters,
		registry: reg,
		engine:   engine,
		arb: NewArbService(engine, norm, store.Checks(), rediscache.NewQuoteCache(rc, 0),
			rediscache.NewSignalBus(rc), discardLogger()),
		watch: NewWatchlistService(store.Users(), store.Pairs(), store.Watchlist(), norm, reg, discardLogger()),
	}
}
