package exchange

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Registry holds the enabled exchange adapters keyed by ID.
type Registry struct {
	adapters map[domain.ExchangeID]domain.ExchangeAdapter
	mu       sync.RWMutex
}

// NewRegistry returns a registry containing the given adapters.
func NewRegistry(adapters ...domain.ExchangeAdapter) *Registry {
	r := &Registry{adapters: make(map[domain.ExchangeID]domain.ExchangeAdapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an adapter under its own ID.
func (r *Registry) Register(a domain.ExchangeAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.ID()] = a
}

// Get returns the adapter registered under id.
func (r *Registry) Get(id domain.ExchangeID) (domain.ExchangeAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownExchange, id)
	}
	return a, nil
}

// Resolve maps a user-typed exchange name to its registered ID, ignoring case
// and surrounding whitespace.
func (r *Registry) Resolve(name string) (domain.ExchangeID, error) {
	name = strings.TrimSpace(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.adapters {
		if strings.EqualFold(string(id), name) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownExchange, name)
}

// ResolveAll resolves every name and drops duplicates, keeping first-seen order.
func (r *Registry) ResolveAll(names []string) ([]domain.ExchangeID, error) {
	out := make([]domain.ExchangeID, 0, len(names))
	seen := make(map[domain.ExchangeID]bool, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		id, err := r.Resolve(n)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// IDs returns the registered exchange IDs, sorted.
func (r *Registry) IDs() []domain.ExchangeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]domain.ExchangeID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Adapters returns the registered adapters ordered by ID.
func (r *Registry) Adapters() []domain.ExchangeAdapter {
	ids := r.IDs()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ExchangeAdapter, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.adapters[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Fees collects the static fee schedule of every adapter.
func (r *Registry) Fees() domain.FeeTable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fees := make(domain.FeeTable, len(r.adapters))
	for id, a := range r.adapters {
		fees[id] = a.Fees()
	}
	return fees
}
