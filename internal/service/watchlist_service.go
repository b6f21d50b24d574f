// Package service holds the application use cases shared by the REST API, the
// Telegram bot and the monitor: user and watchlist management, arbitrage
// checks with their side effects, and the periodic watchlist scan.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// SymbolValidator upper-cases and validates canonical symbols.
// *symbol.Normalizer satisfies it.
type SymbolValidator interface {
	Validate(canonical string) (string, error)
}

// ExchangeResolver maps user-typed exchange names to enabled exchange IDs.
// *exchange.Registry satisfies it.
type ExchangeResolver interface {
	Resolve(name string) (domain.ExchangeID, error)
	ResolveAll(names []string) ([]domain.ExchangeID, error)
	IDs() []domain.ExchangeID
}

// WatchlistService manages users, currency pairs and the pairs each user
// watches.
type WatchlistService struct {
	users     domain.UserStore
	pairs     domain.CurrencyPairStore
	watches   domain.WatchlistStore
	symbols   SymbolValidator
	exchanges ExchangeResolver
	logger    *slog.Logger
}

// NewWatchlistService creates a WatchlistService with all required dependencies.
func NewWatchlistService(
	users domain.UserStore,
	pairs domain.CurrencyPairStore,
	watches domain.WatchlistStore,
	symbols SymbolValidator,
	exchanges ExchangeResolver,
	logger *slog.Logger,
) *WatchlistService {
	return &WatchlistService{
		users:     users,
		pairs:     pairs,
		watches:   watches,
		symbols:   symbols,
		exchanges: exchanges,
		logger:    logger.With(slog.String("component", "watchlist_service")),
	}
}

// CreateUser registers a Telegram account. An empty username becomes
// domain.DefaultUsername.
func (s *WatchlistService) CreateUser(ctx context.Context, telegramID, username string) (domain.User, error) {
	telegramID = strings.TrimSpace(telegramID)
	if telegramID == "" {
		return domain.User{}, fmt.Errorf("watchlist_service: create user: %w: telegram_id is required", domain.ErrInvalidInput)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = domain.DefaultUsername
	}
	u, err := s.users.Create(ctx, domain.User{TelegramID: telegramID, Username: username})
	if err != nil {
		return domain.User{}, fmt.Errorf("watchlist_service: create user: %w", err)
	}
	s.logger.InfoContext(ctx, "user created",
		slog.Int64("user_id", u.ID),
		slog.String("telegram_id", u.TelegramID),
	)
	return u, nil
}

// EnsureUser returns the user for telegramID, creating it when missing. The
// boolean is true when the user was created by this call.
func (s *WatchlistService) EnsureUser(ctx context.Context, telegramID, username string) (domain.User, bool, error) {
	u, err := s.users.GetByTelegramID(ctx, strings.TrimSpace(telegramID))
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, false, fmt.Errorf("watchlist_service: ensure user: %w", err)
	}
	u, err = s.CreateUser(ctx, telegramID, username)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost a race with a concurrent /start.
		u, err = s.users.GetByTelegramID(ctx, strings.TrimSpace(telegramID))
		if err != nil {
			return domain.User{}, false, fmt.Errorf("watchlist_service: ensure user: %w", err)
		}
		return u, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}

func (s *WatchlistService) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *WatchlistService) GetUserByTelegramID(ctx context.Context, telegramID string) (domain.User, error) {
	return s.users.GetByTelegramID(ctx, strings.TrimSpace(telegramID))
}

func (s *WatchlistService) ListUsers(ctx context.Context, opts domain.ListOpts) ([]domain.User, error) {
	return s.users.List(ctx, opts)
}

// DeleteUser removes a user together with their watches.
func (s *WatchlistService) DeleteUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := s.users.Delete(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("watchlist_service: delete user %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "user deleted", slog.Int64("user_id", id))
	return u, nil
}

// CreatePair registers a canonical symbol after validating it.
func (s *WatchlistService) CreatePair(ctx context.Context, pair string) (domain.CurrencyPair, error) {
	sym, err := s.symbols.Validate(pair)
	if err != nil {
		return domain.CurrencyPair{}, fmt.Errorf("watchlist_service: create pair: %w", err)
	}
	p, err := s.pairs.Create(ctx, sym)
	if err != nil {
		return domain.CurrencyPair{}, fmt.Errorf("watchlist_service: create pair: %w", err)
	}
	return p, nil
}

// EnsurePair returns the stored pair, creating it on first use.
func (s *WatchlistService) EnsurePair(ctx context.Context, pair string) (domain.CurrencyPair, error) {
	sym, err := s.symbols.Validate(pair)
	if err != nil {
		return domain.CurrencyPair{}, fmt.Errorf("watchlist_service: ensure pair: %w", err)
	}
	p, err := s.pairs.GetByPair(ctx, sym)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.CurrencyPair{}, fmt.Errorf("watchlist_service: ensure pair: %w", err)
	}
	p, err = s.pairs.Create(ctx, sym)
	if errors.Is(err, domain.ErrAlreadyExists) {
		p, err = s.pairs.GetByPair(ctx, sym)
	}
	if err != nil {
		return domain.CurrencyPair{}, fmt.Errorf("watchlist_service: ensure pair: %w", err)
	}
	return p, nil
}

// GetPair looks a pair up by symbol, case-insensitively.
func (s *WatchlistService) GetPair(ctx context.Context, pair string) (domain.CurrencyPair, error) {
	return s.pairs.GetByPair(ctx, strings.ToUpper(strings.TrimSpace(pair)))
}

func (s *WatchlistService) GetPairByID(ctx context.Context, id int64) (domain.CurrencyPair, error) {
	return s.pairs.GetByID(ctx, id)
}

func (s *WatchlistService) ListPairs(ctx context.Context, opts domain.ListOpts) ([]domain.CurrencyPair, error) {
	return s.pairs.List(ctx, opts)
}

func (s *WatchlistService) DeletePair(ctx context.Context, pair string) (domain.CurrencyPair, error) {
	return s.pairs.Delete(ctx, strings.ToUpper(strings.TrimSpace(pair)))
}

// AddWatch starts watching pairID for userID on the named exchanges. Names are
// resolved case-insensitively and de-duplicated; an empty list means every
// enabled exchange.
func (s *WatchlistService) AddWatch(ctx context.Context, userID, pairID int64, exchanges []string) (domain.Watch, error) {
	ids, err := s.exchanges.ResolveAll(exchanges)
	if err != nil {
		return domain.Watch{}, fmt.Errorf("watchlist_service: add watch: %w", err)
	}
	w, err := s.watches.Create(ctx, domain.Watch{UserID: userID, CurrencyPairID: pairID, SelectedExchanges: ids})
	if err != nil {
		return domain.Watch{}, fmt.Errorf("watchlist_service: add watch: %w", err)
	}
	return w, nil
}

func (s *WatchlistService) GetWatch(ctx context.Context, userID, pairID int64) (domain.Watch, error) {
	return s.watches.Get(ctx, userID, pairID)
}

func (s *WatchlistService) ListWatches(ctx context.Context, userID int64) ([]domain.Watch, error) {
	return s.watches.ListByUser(ctx, userID)
}

func (s *WatchlistService) ListWatchDetails(ctx context.Context, userID int64) ([]domain.WatchDetail, error) {
	return s.watches.ListDetailsByUser(ctx, userID)
}

// FindWatch returns the user's watch detail for pair, or domain.ErrNotFound.
func (s *WatchlistService) FindWatch(ctx context.Context, userID int64, pair string) (domain.WatchDetail, error) {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	details, err := s.watches.ListDetailsByUser(ctx, userID)
	if err != nil {
		return domain.WatchDetail{}, fmt.Errorf("watchlist_service: find watch: %w", err)
	}
	for _, d := range details {
		if d.Pair == pair {
			return d, nil
		}
	}
	return domain.WatchDetail{}, domain.ErrNotFound
}

// UpdateWatch changes the exchange selection of a watch. NewExchanges, a
// comma-separated list, replaces the selection; otherwise Remove is applied
// first and Add is appended when not already present. Both comparisons
// ignore case.
func (s *WatchlistService) UpdateWatch(ctx context.Context, userID, pairID int64, upd domain.WatchUpdate) (domain.Watch, error) {
	var next []domain.ExchangeID
	if upd.NewExchanges != nil {
		ids, err := s.exchanges.ResolveAll(strings.Split(*upd.NewExchanges, ","))
		if err != nil {
			return domain.Watch{}, fmt.Errorf("watchlist_service: update watch: %w", err)
		}
		next = ids
	} else {
		cur, err := s.watches.Get(ctx, userID, pairID)
		if err != nil {
			return domain.Watch{}, fmt.Errorf("watchlist_service: update watch: %w", err)
		}
		next = cur.SelectedExchanges
		if upd.Remove != nil {
			next = removeExchange(next, *upd.Remove)
		}
		if upd.Add != nil && strings.TrimSpace(*upd.Add) != "" {
			id, err := s.exchanges.Resolve(*upd.Add)
			if err != nil {
				return domain.Watch{}, fmt.Errorf("watchlist_service: update watch: %w", err)
			}
			if !containsExchange(next, string(id)) {
				next = append(next, id)
			}
		}
	}

	w, err := s.watches.UpdateExchanges(ctx, userID, pairID, next)
	if err != nil {
		return domain.Watch{}, fmt.Errorf("watchlist_service: update watch: %w", err)
	}
	return w, nil
}

// RemoveWatch stops watching a pair.
func (s *WatchlistService) RemoveWatch(ctx context.Context, userID, pairID int64) (domain.Watch, error) {
	w, err := s.watches.Delete(ctx, userID, pairID)
	if err != nil {
		return domain.Watch{}, fmt.Errorf("watchlist_service: remove watch: %w", err)
	}
	return w, nil
}

// AvailableExchanges lists the enabled exchange IDs.
func (s *WatchlistService) AvailableExchanges() []domain.ExchangeID {
	return s.exchanges.IDs()
}

func removeExchange(ids []domain.ExchangeID, name string) []domain.ExchangeID {
	name = strings.TrimSpace(name)
	out := make([]domain.ExchangeID, 0, len(ids))
	for _, id := range ids {
		if !strings.EqualFold(string(id), name) {
			out = append(out, id)
		}
	}
	return out
}

func containsExchange(ids []domain.ExchangeID, name string) bool {
	for _, id := range ids {
		if strings.EqualFold(string(id), name) {
			return true
		}
	}
	return false
}
