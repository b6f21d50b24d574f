package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// PairHandler serves /api/currency_pairs.
type PairHandler struct {
	svc    WatchlistService
	logger *slog.Logger
}

// NewPairHandler creates a PairHandler.
func NewPairHandler(svc WatchlistService, logger *slog.Logger) *PairHandler {
	return &PairHandler{svc: svc, logger: logger}
}

// Create registers a pair; the symbol must be a valid canonical symbol.
// POST /api/currency_pairs
func (h *PairHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pair string `json:"pair"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "create pair", err)
		return
	}
	p, err := h.svc.CreatePair(r.Context(), req.Pair)
	if err != nil {
		writeDomainError(w, r, h.logger, "create pair", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// List returns the registered pairs.
// GET /api/currency_pairs?limit=50&offset=0
func (h *PairHandler) List(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.svc.ListPairs(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, "list pairs", err)
		return
	}
	if pairs == nil {
		pairs = []domain.CurrencyPair{}
	}
	writeJSON(w, http.StatusOK, pairs)
}

// Get returns a pair by symbol.
// GET /api/currency_pairs/{pair}
func (h *PairHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPair(r.Context(), r.PathValue("pair"))
	if err != nil {
		writeDomainError(w, r, h.logger, "get pair", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetByID returns a pair by ID.
// GET /api/currency_pairs/id/{id}
func (h *PairHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, r, h.logger, "get pair", err)
		return
	}
	p, err := h.svc.GetPairByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "get pair", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete removes a pair and every watch on it.
// DELETE /api/currency_pairs/{pair}
func (h *PairHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.DeletePair(r.Context(), r.PathValue("pair"))
	if err != nil {
		writeDomainError(w, r, h.logger, "delete pair", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
