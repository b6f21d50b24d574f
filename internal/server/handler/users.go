package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// WatchlistService defines the methods the user, pair and watchlist handlers
// require. *service.WatchlistService satisfies it.
type WatchlistService interface {
	CreateUser(ctx context.Context, telegramID, username string) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID string) (domain.User, error)
	ListUsers(ctx context.Context, opts domain.ListOpts) ([]domain.User, error)
	DeleteUser(ctx context.Context, id int64) (domain.User, error)

	CreatePair(ctx context.Context, pair string) (domain.CurrencyPair, error)
	GetPair(ctx context.Context, pair string) (domain.CurrencyPair, error)
	GetPairByID(ctx context.Context, id int64) (domain.CurrencyPair, error)
	ListPairs(ctx context.Context, opts domain.ListOpts) ([]domain.CurrencyPair, error)
	DeletePair(ctx context.Context, pair string) (domain.CurrencyPair, error)

	AddWatch(ctx context.Context, userID, pairID int64, exchanges []string) (domain.Watch, error)
	ListWatches(ctx context.Context, userID int64) ([]domain.Watch, error)
	ListWatchDetails(ctx context.Context, userID int64) ([]domain.WatchDetail, error)
	UpdateWatch(ctx context.Context, userID, pairID int64, upd domain.WatchUpdate) (domain.Watch, error)
	RemoveWatch(ctx context.Context, userID, pairID int64) (domain.Watch, error)
}

// UserHandler serves /api/users.
type UserHandler struct {
	svc    WatchlistService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(svc WatchlistService, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

type createUserRequest struct {
	TelegramID string `json:"telegram_id"`
	Username   string `json:"username"`
}

// Create registers a user.
// POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "create user", err)
		return
	}
	u, err := h.svc.CreateUser(r.Context(), req.TelegramID, req.Username)
	if err != nil {
		writeDomainError(w, r, h.logger, "create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// List returns users page by page.
// GET /api/users?limit=50&offset=0
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, "list users", err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// Get returns one user.
// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, r, h.logger, "get user", err)
		return
	}
	u, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GetByTelegramID returns the user owning a Telegram account.
// GET /api/users/telegram/{telegram_id}
func (h *UserHandler) GetByTelegramID(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetUserByTelegramID(r.Context(), r.PathValue("telegram_id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Delete removes a user and their watchlist, returning the deleted user.
// DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, r, h.logger, "delete user", err)
		return
	}
	u, err := h.svc.DeleteUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "delete user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
