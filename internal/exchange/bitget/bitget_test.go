package bitget

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/exchange"
)

func serve(t *testing.T, body string) *Adapter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/spot/market/tickers", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(exchange.Options{BaseURL: srv.URL})
}

func TestQuote(t *testing.T) {
	a := serve(t, `{"code":"00000","msg":"success","data":[{"symbol":"ETHUSDT","lastPr":"3521.07"}]}`)

	price, err := a.Quote(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("3521.07")))
	assert.Equal(t, domain.ExchangeBitget, a.ID())
}

func TestQuoteErrorEnvelope(t *testing.T) {
	a := serve(t, `{"code":"40034","msg":"Parameter does not exist","data":null}`)

	_, err := a.Quote(context.Background(), "NOPEUSDT")
	assert.Equal(t, domain.ReasonMalformed, domain.ReasonOf(err))
}

func TestQuoteEmptyData(t *testing.T) {
	a := serve(t, `{"code":"00000","msg":"success","data":[]}`)

	_, err := a.Quote(context.Background(), "ETHUSDT")
	assert.Equal(t, domain.ReasonMalformed, domain.ReasonOf(err))
}
