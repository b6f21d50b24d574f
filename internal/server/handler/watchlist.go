package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// WatchlistHandler serves /api/user_currency_pairs.
type WatchlistHandler struct {
	svc    WatchlistService
	logger *slog.Logger
}

// NewWatchlistHandler creates a WatchlistHandler.
func NewWatchlistHandler(svc WatchlistService, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{svc: svc, logger: logger}
}

type createWatchRequest struct {
	CurrencyPairID int64 `json:"currency_pair_id"`
	// SelectedExchanges is a comma-separated list; empty means all.
	SelectedExchanges string `json:"selected_exchanges"`
}

// userID parses {user_id} and checks the user exists.
func (h *WatchlistHandler) userID(r *http.Request) (int64, error) {
	id, err := pathID(r, "user_id")
	if err != nil {
		return 0, err
	}
	if _, err := h.svc.GetUser(r.Context(), id); err != nil {
		return 0, err
	}
	return id, nil
}

// Create adds a pair to a user's watchlist.
// POST /api/user_currency_pairs/{user_id}
func (h *WatchlistHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		writeDomainError(w, r, h.logger, "add watch", err)
		return
	}
	var req createWatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "add watch", err)
		return
	}
	var names []string
	if strings.TrimSpace(req.SelectedExchanges) != "" {
		names = strings.Split(req.SelectedExchanges, ",")
	}
	watch, err := h.svc.AddWatch(r.Context(), userID, req.CurrencyPairID, names)
	if err != nil {
		writeDomainError(w, r, h.logger, "add watch", err)
		return
	}
	writeJSON(w, http.StatusCreated, watch)
}

// List returns a user's watches.
// GET /api/user_currency_pairs/{user_id}
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		writeDomainError(w, r, h.logger, "list watches", err)
		return
	}
	watches, err := h.svc.ListWatches(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, "list watches", err)
		return
	}
	if watches == nil {
		watches = []domain.Watch{}
	}
	writeJSON(w, http.StatusOK, watches)
}

// ListDetails returns a user's watches joined with pair names.
// GET /api/user_currency_pairs/{user_id}/with_details
func (h *WatchlistHandler) ListDetails(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		writeDomainError(w, r, h.logger, "list watches", err)
		return
	}
	details, err := h.svc.ListWatchDetails(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, "list watches", err)
		return
	}
	if details == nil {
		details = []domain.WatchDetail{}
	}
	writeJSON(w, http.StatusOK, details)
}

// Update changes the exchanges of a watch.
// PUT /api/user_currency_pairs/{user_id}/{currency_pair_id}
func (h *WatchlistHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		writeDomainError(w, r, h.logger, "update watch", err)
		return
	}
	pairID, err := pathID(r, "currency_pair_id")
	if err != nil {
		writeDomainError(w, r, h.logger, "update watch", err)
		return
	}
	var upd domain.WatchUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeDomainError(w, r, h.logger, "update watch", err)
		return
	}
	watch, err := h.svc.UpdateWatch(r.Context(), userID, pairID, upd)
	if err != nil {
		writeDomainError(w, r, h.logger, "update watch", err)
		return
	}
	writeJSON(w, http.StatusOK, watch)
}

// Delete removes a watch, returning it.
// DELETE /api/user_currency_pairs/{user_id}/{currency_pair_id}
func (h *WatchlistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		writeDomainError(w, r, h.logger, "remove watch", err)
		return
	}
	pairID, err := pathID(r, "currency_pair_id")
	if err != nil {
		writeDomainError(w, r, h.logger, "remove watch", err)
		return
	}
	watch, err := h.svc.RemoveWatch(r.Context(), userID, pairID)
	if err != nil {
		writeDomainError(w, r, h.logger, "remove watch", err)
		return
	}
	writeJSON(w, http.StatusOK, watch)
}
