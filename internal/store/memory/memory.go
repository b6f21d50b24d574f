// Package memory implements the domain stores in process memory with the
// same constraint behaviour as the Postgres stores: unique telegram IDs and
// pairs, foreign keys, and cascading deletes.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

type watchKey struct {
	user, pair int64
}

// Store holds all tables behind one mutex so cascades stay consistent.
type Store struct {
	mu       sync.RWMutex
	nextUser int64
	nextPair int64
	users    map[int64]domain.User
	pairs    map[int64]domain.CurrencyPair
	watches  map[watchKey]domain.Watch
	checks   []domain.ArbitrageCheck
	now      func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:   make(map[int64]domain.User),
		pairs:   make(map[int64]domain.CurrencyPair),
		watches: make(map[watchKey]domain.Watch),
		now:     time.Now,
	}
}

// Users returns the domain.UserStore view.
func (s *Store) Users() *UserStore { return &UserStore{s} }

// Pairs returns the domain.CurrencyPairStore view.
func (s *Store) Pairs() *CurrencyPairStore { return &CurrencyPairStore{s} }

// Watchlist returns the domain.WatchlistStore view.
func (s *Store) Watchlist() *WatchlistStore { return &WatchlistStore{s} }

// Checks returns the domain.CheckStore view.
func (s *Store) Checks() *CheckStore { return &CheckStore{s} }

func page[T any](items []T, opts domain.ListOpts) []T {
	limit := opts.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[max(opts.Offset, 0):]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// UserStore implements domain.UserStore.
type UserStore struct{ s *Store }

func (u *UserStore) Create(_ context.Context, user domain.User) (domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.TelegramID == user.TelegramID {
			return domain.User{}, fmt.Errorf("memory: create user: %w", domain.ErrAlreadyExists)
		}
	}
	u.s.nextUser++
	user.ID = u.s.nextUser
	user.CreatedAt = u.s.now().UTC()
	u.s.users[user.ID] = user
	return user, nil
}

func (u *UserStore) GetByID(_ context.Context, id int64) (domain.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (u *UserStore) GetByTelegramID(_ context.Context, telegramID string) (domain.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	for _, user := range u.s.users {
		if user.TelegramID == telegramID {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (u *UserStore) List(_ context.Context, opts domain.ListOpts) ([]domain.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	out := make([]domain.User, 0, len(u.s.users))
	for _, user := range u.s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, opts), nil
}

func (u *UserStore) Delete(_ context.Context, id int64) (domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	delete(u.s.users, id)
	for k := range u.s.watches {
		if k.user == id {
			delete(u.s.watches, k)
		}
	}
	return user, nil
}

// CurrencyPairStore implements domain.CurrencyPairStore.
type CurrencyPairStore struct{ s *Store }

func (p *CurrencyPairStore) Create(_ context.Context, pair string) (domain.CurrencyPair, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	for _, existing := range p.s.pairs {
		if existing.Pair == pair {
			return domain.CurrencyPair{}, fmt.Errorf("memory: create pair: %w", domain.ErrAlreadyExists)
		}
	}
	p.s.nextPair++
	cp := domain.CurrencyPair{ID: p.s.nextPair, Pair: pair}
	p.s.pairs[cp.ID] = cp
	return cp, nil
}

func (p *CurrencyPairStore) GetByPair(_ context.Context, pair string) (domain.CurrencyPair, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return p.s.pairByName(pair)
}

func (s *Store) pairByName(pair string) (domain.CurrencyPair, error) {
	for _, cp := range s.pairs {
		if cp.Pair == pair {
			return cp, nil
		}
	}
	return domain.CurrencyPair{}, domain.ErrNotFound
}

func (p *CurrencyPairStore) GetByID(_ context.Context, id int64) (domain.CurrencyPair, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	cp, ok := p.s.pairs[id]
	if !ok {
		return domain.CurrencyPair{}, domain.ErrNotFound
	}
	return cp, nil
}

func (p *CurrencyPairStore) List(_ context.Context, opts domain.ListOpts) ([]domain.CurrencyPair, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	out := make([]domain.CurrencyPair, 0, len(p.s.pairs))
	for _, cp := range p.s.pairs {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, opts), nil
}

func (p *CurrencyPairStore) Delete(_ context.Context, pair string) (domain.CurrencyPair, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	cp, err := p.s.pairByName(pair)
	if err != nil {
		return domain.CurrencyPair{}, err
	}
	delete(p.s.pairs, cp.ID)
	for k := range p.s.watches {
		if k.pair == cp.ID {
			delete(p.s.watches, k)
		}
	}
	return cp, nil
}

// WatchlistStore implements domain.WatchlistStore.
type WatchlistStore struct{ s *Store }

func copyIDs(ids []domain.ExchangeID) []domain.ExchangeID {
	out := make([]domain.ExchangeID, len(ids))
	copy(out, ids)
	return out
}

func (w *WatchlistStore) Create(_ context.Context, watch domain.Watch) (domain.Watch, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if _, ok := w.s.users[watch.UserID]; !ok {
		return domain.Watch{}, fmt.Errorf("memory: create watch: user %d: %w", watch.UserID, domain.ErrNotFound)
	}
	if _, ok := w.s.pairs[watch.CurrencyPairID]; !ok {
		return domain.Watch{}, fmt.Errorf("memory: create watch: pair %d: %w", watch.CurrencyPairID, domain.ErrNotFound)
	}
	k := watchKey{watch.UserID, watch.CurrencyPairID}
	if _, ok := w.s.watches[k]; ok {
		return domain.Watch{}, fmt.Errorf("memory: create watch: %w", domain.ErrAlreadyExists)
	}
	watch.SelectedExchanges = copyIDs(watch.SelectedExchanges)
	w.s.watches[k] = watch
	return watch, nil
}

func (w *WatchlistStore) Get(_ context.Context, userID, pairID int64) (domain.Watch, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	watch, ok := w.s.watches[watchKey{userID, pairID}]
	if !ok {
		return domain.Watch{}, domain.ErrNotFound
	}
	watch.SelectedExchanges = copyIDs(watch.SelectedExchanges)
	return watch, nil
}

func (w *WatchlistStore) sorted(filter func(watchKey) bool) []domain.Watch {
	out := make([]domain.Watch, 0)
	for k, watch := range w.s.watches {
		if filter(k) {
			watch.SelectedExchanges = copyIDs(watch.SelectedExchanges)
			out = append(out, watch)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].CurrencyPairID < out[j].CurrencyPairID
	})
	return out
}

func (w *WatchlistStore) ListByUser(_ context.Context, userID int64) ([]domain.Watch, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	return w.sorted(func(k watchKey) bool { return k.user == userID }), nil
}

func (w *WatchlistStore) detail(watch domain.Watch) domain.WatchDetail {
	return domain.WatchDetail{
		UserID:         watch.UserID,
		TelegramID:     w.s.users[watch.UserID].TelegramID,
		CurrencyPairID: watch.CurrencyPairID,
		Pair:           w.s.pairs[watch.CurrencyPairID].Pair,
		Exchanges:      watch.SelectedExchanges,
	}
}

func (w *WatchlistStore) ListDetailsByUser(_ context.Context, userID int64) ([]domain.WatchDetail, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	watches := w.sorted(func(k watchKey) bool { return k.user == userID })
	out := make([]domain.WatchDetail, 0, len(watches))
	for _, watch := range watches {
		out = append(out, w.detail(watch))
	}
	return out, nil
}

func (w *WatchlistStore) ListAllDetails(_ context.Context) ([]domain.WatchDetail, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	watches := w.sorted(func(watchKey) bool { return true })
	out := make([]domain.WatchDetail, 0, len(watches))
	for _, watch := range watches {
		out = append(out, w.detail(watch))
	}
	return out, nil
}

func (w *WatchlistStore) UpdateExchanges(_ context.Context, userID, pairID int64, exchanges []domain.ExchangeID) (domain.Watch, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	k := watchKey{userID, pairID}
	watch, ok := w.s.watches[k]
	if !ok {
		return domain.Watch{}, domain.ErrNotFound
	}
	watch.SelectedExchanges = copyIDs(exchanges)
	w.s.watches[k] = watch
	return watch, nil
}

func (w *WatchlistStore) Delete(_ context.Context, userID, pairID int64) (domain.Watch, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	k := watchKey{userID, pairID}
	watch, ok := w.s.watches[k]
	if !ok {
		return domain.Watch{}, domain.ErrNotFound
	}
	delete(w.s.watches, k)
	return watch, nil
}

// CheckStore implements domain.CheckStore.
type CheckStore struct{ s *Store }

func (c *CheckStore) Insert(_ context.Context, check domain.ArbitrageCheck) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, existing := range c.s.checks {
		if existing.ID == check.ID {
			return fmt.Errorf("memory: insert check: %w", domain.ErrAlreadyExists)
		}
	}
	c.s.checks = append(c.s.checks, check)
	return nil
}

// ListRecent returns up to limit checks, newest first.
func (c *CheckStore) ListRecent(_ context.Context, limit int) ([]domain.ArbitrageCheck, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	out := append([]domain.ArbitrageCheck(nil), c.s.checks...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckedAt.After(out[j].CheckedAt) })
	return page(out, domain.ListOpts{Limit: limit}), nil
}

// ListBefore returns the checks older than before, oldest first.
func (c *CheckStore) ListBefore(_ context.Context, before time.Time) ([]domain.ArbitrageCheck, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	var out []domain.ArbitrageCheck
	for _, ch := range c.s.checks {
		if ch.CheckedAt.Before(before) {
			out = append(out, ch)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckedAt.Before(out[j].CheckedAt) })
	return out, nil
}

func (c *CheckStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	kept := c.s.checks[:0]
	var n int64
	for _, ch := range c.s.checks {
		if ch.CheckedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, ch)
	}
	c.s.checks = kept
	return n, nil
}

// Compile-time interface checks.
var (
	_ domain.UserStore         = (*UserStore)(nil)
	_ domain.CurrencyPairStore = (*CurrencyPairStore)(nil)
	_ domain.WatchlistStore    = (*WatchlistStore)(nil)
	_ domain.CheckStore        = (*CheckStore)(nil)
)
