package domain

import (
	"context"
	"time"
)

// QuoteCache keeps the latest usable quote per exchange for each symbol. It
// serves display endpoints only; arbitrage checks always refetch.
type QuoteCache interface {
	SetQuotes(ctx context.Context, symbol string, quotes []ExchangeQuote, ts time.Time) error
	GetQuotes(ctx context.Context, symbol string) ([]CachedQuote, error)
}

// CachedQuote is a quote read back from the QuoteCache.
type CachedQuote struct {
	Exchange ExchangeID `json:"exchange"`
	Price    string     `json:"price"`
	At       time.Time  `json:"at"`
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub between processes.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
