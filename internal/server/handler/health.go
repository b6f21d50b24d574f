package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check and exchange listing endpoints.
type HealthHandler struct {
	mode    string
	deps    map[string]Pinger
	fees    func() domain.FeeTable
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. deps are pinged on every health
// check; fees lists the enabled exchanges.
func NewHealthHandler(mode string, deps map[string]Pinger, fees func() domain.FeeTable, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{mode: mode, deps: deps, fees: fees, started: time.Now(), logger: logger}
}

// HealthCheck reports liveness and the state of each dependency. Any failing
// dependency turns the response into a 503 "degraded".
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.WarnContext(r.Context(), "health: dependency down",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			checks[name] = "down"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	writeJSON(w, code, map[string]any{
		"status":         status,
		"mode":           h.mode,
		"dependencies":   checks,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

type exchangeInfo struct {
	ID       domain.ExchangeID `json:"id"`
	MakerFee string            `json:"maker_fee"`
	TakerFee string            `json:"taker_fee"`
}

// ListExchanges returns the enabled exchanges with their fee rates.
// GET /api/exchanges
func (h *HealthHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	fees := h.fees()
	out := make([]exchangeInfo, 0, len(fees))
	for id, f := range fees {
		out = append(out, exchangeInfo{ID: id, MakerFee: f.Maker.String(), TakerFee: f.Taker.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"exchanges": out})
}
