// Package server exposes the REST and WebSocket API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/server/handler"
	"github.com/alanyoungcy/arbwatch/internal/server/middleware"
	"github.com/alanyoungcy/arbwatch/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimit requests per RateWindow per client IP; 0 disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Users     *handler.UserHandler
	Pairs     *handler.PairHandler
	Watchlist *handler.WatchlistHandler
	Arb       *handler.ArbHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain:
// request id, logging, CORS, rate limit, auth. limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/exchanges", handlers.Health.ListExchanges)

	mux.HandleFunc("POST /api/users", handlers.Users.Create)
	mux.HandleFunc("GET /api/users", handlers.Users.List)
	mux.HandleFunc("GET /api/users/{id}", handlers.Users.Get)
	mux.HandleFunc("GET /api/users/telegram/{telegram_id}", handlers.Users.GetByTelegramID)
	mux.HandleFunc("DELETE /api/users/{id}", handlers.Users.Delete)

	mux.HandleFunc("POST /api/currency_pairs", handlers.Pairs.Create)
	mux.HandleFunc("GET /api/currency_pairs", handlers.Pairs.List)
	mux.HandleFunc("GET /api/currency_pairs/{pair}", handlers.Pairs.Get)
	mux.HandleFunc("GET /api/currency_pairs/id/{id}", handlers.Pairs.GetByID)
	mux.HandleFunc("DELETE /api/currency_pairs/{pair}", handlers.Pairs.Delete)

	mux.HandleFunc("POST /api/user_currency_pairs/{user_id}", handlers.Watchlist.Create)
	mux.HandleFunc("GET /api/user_currency_pairs/{user_id}", handlers.Watchlist.List)
	mux.HandleFunc("GET /api/user_currency_pairs/{user_id}/with_details", handlers.Watchlist.ListDetails)
	mux.HandleFunc("PUT /api/user_currency_pairs/{user_id}/{currency_pair_id}", handlers.Watchlist.Update)
	mux.HandleFunc("DELETE /api/user_currency_pairs/{user_id}/{currency_pair_id}", handlers.Watchlist.Delete)

	mux.HandleFunc("GET /api/arbitrage", handlers.Arb.Check)
	mux.HandleFunc("GET /api/arbitrage/recent", handlers.Arb.Recent)
	mux.HandleFunc("GET /api/quotes/{symbol}", handlers.Arb.Quotes)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Outermost first once wrapped.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID()(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
