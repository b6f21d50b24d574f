package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc, attempts int) (*HTTPClient, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, Options{RetryAttempts: attempts, RetryBackoff: time.Millisecond}), &calls
}

func TestGetJSONDecodes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/x", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"price":"1.5"}`))
	}, 1)

	var out struct{ Price string }
	require.NoError(t, c.GetJSON(context.Background(), "/x", map[string][]string{"symbol": {"BTCUSDT"}}, &out))
	assert.Equal(t, "1.5", out.Price)
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var n atomic.Int32
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}, 3)

	var out map[string]any
	require.NoError(t, c.GetJSON(context.Background(), "/", nil, &out))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad symbol", http.StatusBadRequest)
	}, 3)

	var out map[string]any
	err := c.GetJSON(context.Background(), "/", nil, &out)
	require.Error(t, err)
	assert.Equal(t, domain.ReasonBadStatus, domain.ReasonOf(err))
	assert.Equal(t, int32(1), calls.Load())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestGetJSONMalformedBody(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}, 3)

	var out map[string]any
	err := c.GetJSON(context.Background(), "/", nil, &out)
	assert.Equal(t, domain.ReasonMalformed, domain.ReasonOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSONTimeout(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 1)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out map[string]any
	err := c.GetJSON(ctx, "/", nil, &out)
	assert.Equal(t, domain.ReasonTimeout, domain.ReasonOf(err))
}

func TestGetJSONNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, Options{})
	var out map[string]any
	err := c.GetJSON(context.Background(), "/", nil, &out)
	assert.Equal(t, domain.ReasonNetwork, domain.ReasonOf(err))
}

func TestParsePrice(t *testing.T) {
	p, err := ParsePrice(" 104250.12 ")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("104250.12")))

	_, err = ParsePrice("")
	assert.Equal(t, domain.ReasonMalformed, domain.ReasonOf(err))
	_, err = ParsePrice("n/a")
	assert.Equal(t, domain.ReasonMalformed, domain.ReasonOf(err))
}

func TestWithRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, 5, time.Hour, nil, func(context.Context) error {
		calls++
		cancel()
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}
