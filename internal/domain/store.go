package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// UserStore persists bot users.
type UserStore interface {
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByTelegramID(ctx context.Context, telegramID string) (User, error)
	List(ctx context.Context, opts ListOpts) ([]User, error)
	Delete(ctx context.Context, id int64) (User, error)
}

// CurrencyPairStore persists the pairs users may watch.
type CurrencyPairStore interface {
	Create(ctx context.Context, pair string) (CurrencyPair, error)
	GetByPair(ctx context.Context, pair string) (CurrencyPair, error)
	GetByID(ctx context.Context, id int64) (CurrencyPair, error)
	List(ctx context.Context, opts ListOpts) ([]CurrencyPair, error)
	Delete(ctx context.Context, pair string) (CurrencyPair, error)
}

// WatchlistStore persists user watches.
type WatchlistStore interface {
	Create(ctx context.Context, w Watch) (Watch, error)
	Get(ctx context.Context, userID, pairID int64) (Watch, error)
	ListByUser(ctx context.Context, userID int64) ([]Watch, error)
	ListDetailsByUser(ctx context.Context, userID int64) ([]WatchDetail, error)
	ListAllDetails(ctx context.Context) ([]WatchDetail, error)
	UpdateExchanges(ctx context.Context, userID, pairID int64, exchanges []ExchangeID) (Watch, error)
	Delete(ctx context.Context, userID, pairID int64) (Watch, error)
}

// CheckStore persists the arbitrage check log.
type CheckStore interface {
	Insert(ctx context.Context, check ArbitrageCheck) error
	ListRecent(ctx context.Context, limit int) ([]ArbitrageCheck, error)
	ListBefore(ctx context.Context, before time.Time) ([]ArbitrageCheck, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
