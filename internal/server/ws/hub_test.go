package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

type chanBus struct {
	ch chan []byte
}

func (b *chanBus) Publish(_ context.Context, _ string, data []byte) error {
	b.ch <- data
	return nil
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

func newHub(bus domain.SignalBus) *Hub {
	return NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Mode:      "server",
		Exchanges: []domain.ExchangeID{domain.ExchangeMEXC},
	})
}

func dial(t *testing.T, h *Hub, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	var v map[string]any
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func event(symbol string) []byte {
	return []byte(`{"type":"arb_check","check":{"symbol":"` + symbol + `"}}`)
}

func eventSymbolOf(t *testing.T, msg map[string]any) string {
	t.Helper()
	check, ok := msg["check"].(map[string]any)
	require.True(t, ok, "not an event: %v", msg)
	return check["symbol"].(string)
}

func TestHubSendsStatusOnConnect(t *testing.T) {
	h := newHub(&chanBus{ch: make(chan []byte)})
	conn := dial(t, h, "")

	msg := readJSON(t, conn)
	assert.Equal(t, "status", msg["type"])
	payload := msg["payload"].(map[string]any)
	assert.Equal(t, "server", payload["mode"])
	assert.Equal(t, DefaultChannel, payload["channel"])
	assert.Equal(t, []any{"MEXC"}, payload["exchanges"])
}

func TestHubSymbolFilter(t *testing.T) {
	h := newHub(&chanBus{ch: make(chan []byte)})
	all := dial(t, h, "")
	eth := dial(t, h, "?symbol=ethusdt")
	readJSON(t, all)
	readJSON(t, eth)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	h.Broadcast(event("BTCUSDT"))
	h.Broadcast(event("ETHUSDT"))

	assert.Equal(t, "BTCUSDT", eventSymbolOf(t, readJSON(t, all)))
	assert.Equal(t, "ETHUSDT", eventSymbolOf(t, readJSON(t, all)))
	assert.Equal(t, "ETHUSDT", eventSymbolOf(t, readJSON(t, eth)))
}

func TestHubFilterMessages(t *testing.T) {
	h := newHub(&chanBus{ch: make(chan []byte)})
	conn := dial(t, h, "")
	readJSON(t, conn)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(filterMsg{Action: "subscribe", Symbols: []string{"SOLUSDT"}}))
	// The filter is applied asynchronously by the read pump.
	require.Eventually(t, func() bool {
		for c := range snapshotClients(h) {
			if !c.wants("BTCUSDT") {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	h.Broadcast(event("BTCUSDT"))
	h.Broadcast(event("SOLUSDT"))
	assert.Equal(t, "SOLUSDT", eventSymbolOf(t, readJSON(t, conn)))
}

func TestHubRunForwardsBusAndClosesClients(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 1)}
	h := newHub(bus)
	conn := dial(t, h, "")
	readJSON(t, conn)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.NoError(t, bus.Publish(ctx, DefaultChannel, event("BTCUSDT")))
	assert.Equal(t, "BTCUSDT", eventSymbolOf(t, readJSON(t, conn)))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 0, h.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func snapshotClients(h *Hub) map[*client]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[*client]bool, len(h.clients))
	for c := range h.clients {
		out[c] = true
	}
	return out
}


func TestHubRejectsClientsAfterShutdown(t *testing.T) {
	h := newHub(&chanBus{ch: make(chan []byte)})
	h.closeAll()

	conn := dial(t, h, "")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, h.ClientCount())
}
