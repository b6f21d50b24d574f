package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/service"
)

// ArbService defines the methods that the arbitrage handler requires.
type ArbService interface {
	Check(ctx context.Context, req service.CheckRequest) (domain.ArbitrageCheck, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageCheck, error)
	LatestQuotes(ctx context.Context, symbol string) ([]domain.CachedQuote, error)
}

// ExchangeResolver maps user-typed exchange names to IDs.
type ExchangeResolver interface {
	ResolveAll(names []string) ([]domain.ExchangeID, error)
}

// ArbHandler serves the arbitrage and quote endpoints.
type ArbHandler struct {
	arb            ArbService
	exchanges      ExchangeResolver
	defaultCapital decimal.Decimal
	logger         *slog.Logger
}

// NewArbHandler creates an ArbHandler. defaultCapital is used when a request
// omits the capital parameter.
func NewArbHandler(arb ArbService, exchanges ExchangeResolver, defaultCapital decimal.Decimal, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{
		arb:            arb,
		exchanges:      exchanges,
		defaultCapital: defaultCapital,
		logger:         logger,
	}
}

type checkResponse struct {
	domain.ArbitrageCheck
	Text string `json:"text"`
}

// Check runs an on-demand arbitrage check.
// GET /api/arbitrage?symbol=BTCUSDT&capital=1000&exchanges=MEXC,Bitget
func (h *ArbHandler) Check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	symbol := strings.TrimSpace(q.Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusUnprocessableEntity, "symbol is required")
		return
	}

	capital := h.defaultCapital
	if v := strings.TrimSpace(q.Get("capital")); v != "" {
		c, err := decimal.NewFromString(v)
		if err != nil {
			writeDomainError(w, r, h.logger, "arbitrage check",
				fmt.Errorf("%w: %q", domain.ErrInvalidCapital, v))
			return
		}
		capital = c
	}

	var ids []domain.ExchangeID
	if v := strings.TrimSpace(q.Get("exchanges")); v != "" {
		resolved, err := h.exchanges.ResolveAll(strings.Split(v, ","))
		if err != nil {
			writeDomainError(w, r, h.logger, "arbitrage check", err)
			return
		}
		ids = resolved
	}

	check, err := h.arb.Check(r.Context(), service.CheckRequest{
		Symbol:    symbol,
		Capital:   capital,
		Exchanges: ids,
		Source:    domain.SourceAPI,
	})
	if err != nil {
		status := statusFor(err)
		if errors.Is(err, domain.ErrInsufficientQuotes) {
			writeJSON(w, status, map[string]any{
				"error": arbitrage.FailureReason(check.Symbol, err),
				"check": check,
			})
			return
		}
		writeDomainError(w, r, h.logger, "arbitrage check", err)
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{
		ArbitrageCheck: check,
		Text:           arbitrage.FormatReport(check.Report),
	})
}

// Recent returns the latest recorded checks.
// GET /api/arbitrage/recent?limit=50
func (h *ArbHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	checks, err := h.arb.ListRecent(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, h.logger, "list checks", err)
		return
	}
	if checks == nil {
		checks = []domain.ArbitrageCheck{}
	}
	writeJSON(w, http.StatusOK, checks)
}

// Quotes returns the last cached quotes for a symbol.
// GET /api/quotes/{symbol}
func (h *ArbHandler) Quotes(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	quotes, err := h.arb.LatestQuotes(r.Context(), symbol)
	if err != nil {
		writeDomainError(w, r, h.logger, "latest quotes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": strings.ToUpper(strings.TrimSpace(symbol)),
		"quotes": quotes,
	})
}
