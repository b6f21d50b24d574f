package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeQuote is one point-in-time price observation, or an explicit
// unavailable marker when Available is false.
type ExchangeQuote struct {
	Exchange  ExchangeID        `json:"exchange"`
	Price     decimal.Decimal   `json:"price"`
	Available bool              `json:"available"`
	Reason    UnavailableReason `json:"reason,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Latency   time.Duration     `json:"latency_ns"`
}

// AvailableQuote builds a quote carrying a price.
func AvailableQuote(ex ExchangeID, price decimal.Decimal, latency time.Duration) ExchangeQuote {
	return ExchangeQuote{Exchange: ex, Price: price, Available: true, Latency: latency}
}

// UnavailableQuote builds a marker for an exchange that produced no price.
func UnavailableQuote(ex ExchangeID, reason UnavailableReason, detail string, latency time.Duration) ExchangeQuote {
	return ExchangeQuote{Exchange: ex, Reason: reason, Detail: detail, Latency: latency}
}

// Usable reports whether the quote can take part in a calculation.
func (q ExchangeQuote) Usable() bool {
	return q.Available && q.Price.IsPositive()
}

// PriceSnapshot holds one quote per exchange for a single symbol. It is
// immutable once built; quotes are kept sorted by exchange ID.
type PriceSnapshot struct {
	symbol string
	at     time.Time
	quotes []ExchangeQuote
}

// NewPriceSnapshot validates that every exchange appears at most once and
// returns the snapshot.
func NewPriceSnapshot(symbol string, at time.Time, quotes []ExchangeQuote) (PriceSnapshot, error) {
	seen := make(map[ExchangeID]bool, len(quotes))
	sorted := make([]ExchangeQuote, 0, len(quotes))
	for _, q := range quotes {
		if seen[q.Exchange] {
			return PriceSnapshot{}, fmt.Errorf("%w: duplicate quote for %s", ErrInvalidInput, q.Exchange)
		}
		seen[q.Exchange] = true
		sorted = append(sorted, q)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Exchange < sorted[j].Exchange })
	return PriceSnapshot{symbol: symbol, at: at, quotes: sorted}, nil
}

// Symbol returns the canonical symbol the snapshot was taken for.
func (s PriceSnapshot) Symbol() string { return s.symbol }

// At returns the time the aggregation finished.
func (s PriceSnapshot) At() time.Time { return s.at }

// Len returns the number of exchanges covered.
func (s PriceSnapshot) Len() int { return len(s.quotes) }

// Quotes returns a copy of all quotes in exchange order.
func (s PriceSnapshot) Quotes() []ExchangeQuote {
	out := make([]ExchangeQuote, len(s.quotes))
	copy(out, s.quotes)
	return out
}

// Usable returns the quotes that carry a positive price, in exchange order.
func (s PriceSnapshot) Usable() []ExchangeQuote {
	out := make([]ExchangeQuote, 0, len(s.quotes))
	for _, q := range s.quotes {
		if q.Usable() {
			out = append(out, q)
		}
	}
	return out
}

// Get returns the quote for ex.
func (s PriceSnapshot) Get(ex ExchangeID) (ExchangeQuote, bool) {
	for _, q := range s.quotes {
		if q.Exchange == ex {
			return q, true
		}
	}
	return ExchangeQuote{}, false
}

type snapshotJSON struct {
	Symbol string          `json:"symbol"`
	At     time.Time       `json:"at"`
	Quotes []ExchangeQuote `json:"quotes"`
}

// MarshalJSON exposes the unexported fields.
func (s PriceSnapshot) MarshalJSON() ([]byte, error) {
	quotes := s.quotes
	if quotes == nil {
		quotes = []ExchangeQuote{}
	}
	return json.Marshal(snapshotJSON{Symbol: s.symbol, At: s.at, Quotes: quotes})
}

// UnmarshalJSON rebuilds the snapshot through NewPriceSnapshot so the
// uniqueness invariant is enforced for stored data as well.
func (s *PriceSnapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	snap, err := NewPriceSnapshot(raw.Symbol, raw.At, raw.Quotes)
	if err != nil {
		return err
	}
	*s = snap
	return nil
}
