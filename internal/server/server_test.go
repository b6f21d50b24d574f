package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	rediscache "github.com/alanyoungcy/arbwatch/internal/cache/redis"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/exchange"
	"github.com/alanyoungcy/arbwatch/internal/server/handler"
	"github.com/alanyoungcy/arbwatch/internal/service"
	"github.com/alanyoungcy/arbwatch/internal/store/memory"
	"github.com/alanyoungcy/arbwatch/internal/symbol"
)

type staticAdapter struct {
	id    domain.ExchangeID
	price decimal.Decimal
	err   error
}

func (a staticAdapter) ID() domain.ExchangeID { return a.id }

func (a staticAdapter) Fees() domain.FeeSchedule {
	return domain.FeeSchedule{Exchange: a.id, Taker: decimal.RequireFromString("0.001")}
}

func (a staticAdapter) Quote(context.Context, string) (decimal.Decimal, error) {
	return a.price, a.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	handler http.Handler
	rc      *rediscache.Client
}

func newFixture(t *testing.T, cfg Config, adapters ...domain.ExchangeAdapter) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	rc := rediscache.Wrap(rdb)

	if len(adapters) == 0 {
		adapters = []domain.ExchangeAdapter{
			staticAdapter{id: domain.ExchangeMEXC, price: decimal.NewFromInt(100)},
			staticAdapter{id: domain.ExchangeBitget, price: decimal.NewFromInt(105)},
		}
	}
	reg := exchange.NewRegistry(adapters...)
	norm := symbol.NewNormalizer(nil, nil)
	engine := arbitrage.NewEngine(arbitrage.NewAggregator(arbitrage.AggregatorConfig{
		Source: reg, Normalizer: norm, Logger: discardLogger(),
	}), reg.Fees())

	store := memory.New()
	watch := service.NewWatchlistService(store.Users(), store.Pairs(), store.Watchlist(), norm, reg, discardLogger())
	arb := service.NewArbService(engine, norm, store.Checks(), rediscache.NewQuoteCache(rc, 0),
		rediscache.NewSignalBus(rc), discardLogger())

	handlers := Handlers{
		Health:    handler.NewHealthHandler("server", map[string]handler.Pinger{"redis": rc}, reg.Fees, discardLogger()),
		Users:     handler.NewUserHandler(watch, discardLogger()),
		Pairs:     handler.NewPairHandler(watch, discardLogger()),
		Watchlist: handler.NewWatchlistHandler(watch, discardLogger()),
		Arb:       handler.NewArbHandler(arb, reg, decimal.NewFromInt(10000), discardLogger()),
	}
	srv := NewServer(cfg, handlers, nil, rediscache.NewRateLimiter(rc), discardLogger())
	return &fixture{handler: srv.Handler(), rc: rc}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndExchanges(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])

	rec = f.do(t, http.MethodGet, "/api/exchanges", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ex struct {
		Exchanges []struct {
			ID       string `json:"id"`
			TakerFee string `json:"taker_fee"`
		} `json:"exchanges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ex))
	require.Len(t, ex.Exchanges, 2)
	assert.Equal(t, "Bitget", ex.Exchanges[0].ID)
	assert.Equal(t, "MEXC", ex.Exchanges[1].ID)
}

func TestUserRoutes(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodPost, "/api/users", `{"telegram_id":"42","username":"alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	u := decode[domain.User](t, rec)
	assert.Equal(t, "42", u.TelegramID)
	id := strconv.FormatInt(u.ID, 10)

	rec = f.do(t, http.MethodPost, "/api/users", `{"telegram_id":"42"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/users", `{"telegram_id":"  "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/users", `{not json`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/users/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[domain.User](t, rec).Username)

	rec = f.do(t, http.MethodGet, "/api/users/telegram/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, u.ID, decode[domain.User](t, rec).ID)

	rec = f.do(t, http.MethodGet, "/api/users?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.User](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/users/abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/users/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/users/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPairRoutes(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodPost, "/api/currency_pairs", `{"pair":"btcusdt"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[domain.CurrencyPair](t, rec)
	assert.Equal(t, "BTCUSDT", p.Pair)

	rec = f.do(t, http.MethodPost, "/api/currency_pairs", `{"pair":"BTCUSDT"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/currency_pairs", `{"pair":"BTC-USD"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/currency_pairs/btcusdt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, p.ID, decode[domain.CurrencyPair](t, rec).ID)

	rec = f.do(t, http.MethodGet, "/api/currency_pairs/id/"+strconv.FormatInt(p.ID, 10), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/currency_pairs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.CurrencyPair](t, rec), 1)

	rec = f.do(t, http.MethodDelete, "/api/currency_pairs/BTCUSDT", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/currency_pairs/BTCUSDT", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWatchlistRoutes(t *testing.T) {
	f := newFixture(t, Config{})

	u := decode[domain.User](t, f.do(t, http.MethodPost, "/api/users", `{"telegram_id":"7"}`))
	p := decode[domain.CurrencyPair](t, f.do(t, http.MethodPost, "/api/currency_pairs", `{"pair":"ETHUSDT"}`))
	uid := strconv.FormatInt(u.ID, 10)
	pid := strconv.FormatInt(p.ID, 10)
	base := "/api/user_currency_pairs/" + uid

	rec := f.do(t, http.MethodPost, base, `{"currency_pair_id":`+pid+`,"selected_exchanges":"mexc, bitget"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	w := decode[domain.Watch](t, rec)
	assert.Equal(t, []domain.ExchangeID{domain.ExchangeMEXC, domain.ExchangeBitget}, w.SelectedExchanges)

	rec = f.do(t, http.MethodPost, base, `{"currency_pair_id":`+pid+`}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, base, `{"currency_pair_id":`+pid+`,"selected_exchanges":"Kraken"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Watch](t, rec), 1)

	rec = f.do(t, http.MethodGet, base+"/with_details", "")
	require.Equal(t, http.StatusOK, rec.Code)
	details := decode[[]domain.WatchDetail](t, rec)
	require.Len(t, details, 1)
	assert.Equal(t, "ETHUSDT", details[0].Pair)

	rec = f.do(t, http.MethodPut, base+"/"+pid, `{"exchange_to_remove":"MEXC"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []domain.ExchangeID{domain.ExchangeBitget}, decode[domain.Watch](t, rec).SelectedExchanges)

	rec = f.do(t, http.MethodDelete, base+"/"+pid, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/user_currency_pairs/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArbitrageCheck(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodGet, "/api/arbitrage?symbol=btcusdt&capital=10000", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Symbol string `json:"symbol"`
		Source string `json:"source"`
		Text   string `json:"text"`
		Report struct {
			Result struct {
				BuyExchange  string          `json:"buy_exchange"`
				SellExchange string          `json:"sell_exchange"`
				Profit       decimal.Decimal `json:"profit"`
			} `json:"result"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "BTCUSDT", body.Symbol)
	assert.Equal(t, "api", body.Source)
	assert.Equal(t, "MEXC", body.Report.Result.BuyExchange)
	assert.Equal(t, "Bitget", body.Report.Result.SellExchange)
	assert.True(t, body.Report.Result.Profit.Equal(decimal.RequireFromString("479.0105")))
	assert.Contains(t, body.Text, "4.79")

	rec = f.do(t, http.MethodGet, "/api/arbitrage/recent?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.ArbitrageCheck](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/quotes/BTCUSDT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var quotes struct {
		Quotes []domain.CachedQuote `json:"quotes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quotes))
	assert.Len(t, quotes.Quotes, 2)
}

func TestArbitrageCheckErrors(t *testing.T) {
	f := newFixture(t, Config{})

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing symbol", "", http.StatusUnprocessableEntity},
		{"bad symbol", "symbol=BTC-USD", http.StatusUnprocessableEntity},
		{"zero capital", "symbol=BTCUSDT&capital=0", http.StatusUnprocessableEntity},
		{"garbage capital", "symbol=BTCUSDT&capital=lots", http.StatusUnprocessableEntity},
		{"unknown exchange", "symbol=BTCUSDT&exchanges=Kraken", http.StatusUnprocessableEntity},
		{"single exchange", "symbol=BTCUSDT&exchanges=MEXC", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/arbitrage?"+tt.query, "")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := f.do(t, http.MethodGet, "/api/quotes/DOGEUSDT", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArbitrageInsufficientQuotesCarriesSnapshot(t *testing.T) {
	f := newFixture(t, Config{},
		staticAdapter{id: domain.ExchangeMEXC, price: decimal.NewFromInt(100)},
		staticAdapter{id: domain.ExchangeBitget, err: domain.Unavailable(domain.ReasonNetwork, context.Canceled)},
	)

	rec := f.do(t, http.MethodGet, "/api/arbitrage?symbol=BTCUSDT", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Error string                `json:"error"`
		Check domain.ArbitrageCheck `json:"check"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, 2, body.Check.Report.Snapshot.Len())
}

func TestAuthExemptsHealth(t *testing.T) {
	f := newFixture(t, Config{APIKey: "secret"})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/users", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitPerIP(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 2, RateWindow: time.Minute})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/exchanges", "").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodGet, "/api/exchanges", "").Code)
}
