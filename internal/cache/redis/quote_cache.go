package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// DefaultQuoteTTL bounds how long the latest quotes of a symbol stay readable.
const DefaultQuoteTTL = 10 * time.Minute

// QuoteCache implements domain.QuoteCache using Redis hashes. The latest
// usable quotes of a symbol live at "quotes:{symbol}", one field per
// exchange holding {"price","at"} as JSON.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache. A non-positive ttl takes DefaultQuoteTTL.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quotesKey(symbol string) string {
	return "quotes:" + symbol
}

type cachedEntry struct {
	Price string    `json:"price"`
	At    time.Time `json:"at"`
}

// SetQuotes records the usable quotes of one aggregation. Unavailable entries
// are skipped so the previous price for that exchange stays visible.
func (qc *QuoteCache) SetQuotes(ctx context.Context, symbol string, quotes []domain.ExchangeQuote, ts time.Time) error {
	fields := make(map[string]interface{}, len(quotes))
	for _, q := range quotes {
		if !q.Usable() {
			continue
		}
		raw, err := json.Marshal(cachedEntry{Price: q.Price.String(), At: ts.UTC()})
		if err != nil {
			return fmt.Errorf("redis: encode quote %s/%s: %w", symbol, q.Exchange, err)
		}
		fields[string(q.Exchange)] = raw
	}
	if len(fields) == 0 {
		return nil
	}

	key := quotesKey(symbol)
	pipe := qc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, qc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quotes %s: %w", symbol, err)
	}
	return nil
}

// GetQuotes returns the cached quotes of symbol ordered by exchange. It
// returns domain.ErrNotFound when nothing is cached.
func (qc *QuoteCache) GetQuotes(ctx context.Context, symbol string) ([]domain.CachedQuote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quotesKey(symbol)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get quotes %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}

	out := make([]domain.CachedQuote, 0, len(vals))
	for ex, raw := range vals {
		var e cachedEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("redis: decode quote %s/%s: %w", symbol, ex, err)
		}
		out = append(out, domain.CachedQuote{Exchange: domain.ExchangeID(ex), Price: e.Price, At: e.At})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Exchange < out[j].Exchange })
	return out, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
