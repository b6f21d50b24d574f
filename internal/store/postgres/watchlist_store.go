package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// WatchlistStore implements domain.WatchlistStore using PostgreSQL. Selected
// exchanges are stored as a comma-separated list.
type WatchlistStore struct {
	pool *pgxpool.Pool
}

// NewWatchlistStore creates a new WatchlistStore backed by the given pool.
func NewWatchlistStore(pool *pgxpool.Pool) *WatchlistStore {
	return &WatchlistStore{pool: pool}
}

func joinExchanges(ids []domain.ExchangeID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if s := strings.TrimSpace(string(id)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}

func splitExchanges(s string) []domain.ExchangeID {
	out := []domain.ExchangeID{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, domain.ExchangeID(p))
		}
	}
	return out
}

func scanWatch(row rowScanner) (domain.Watch, error) {
	var (
		w   domain.Watch
		raw string
	)
	if err := row.Scan(&w.UserID, &w.CurrencyPairID, &raw); err != nil {
		return domain.Watch{}, err
	}
	w.SelectedExchanges = splitExchanges(raw)
	return w, nil
}

func scanDetail(row rowScanner) (domain.WatchDetail, error) {
	var (
		d   domain.WatchDetail
		raw string
	)
	if err := row.Scan(&d.UserID, &d.TelegramID, &d.CurrencyPairID, &d.Pair, &raw); err != nil {
		return domain.WatchDetail{}, err
	}
	d.Exchanges = splitExchanges(raw)
	return d, nil
}

const watchCols = `user_id, currency_pair_id, selected_exchanges`

const detailSelect = `
	SELECT ucp.user_id, u.telegram_id, ucp.currency_pair_id, cp.pair, ucp.selected_exchanges
	FROM user_currency_pairs ucp
	JOIN users u ON u.id = ucp.user_id
	JOIN currency_pairs cp ON cp.id = ucp.currency_pair_id`

// Create adds a watch. Unknown user or pair yields domain.ErrNotFound; an
// existing watch yields domain.ErrAlreadyExists.
func (s *WatchlistStore) Create(ctx context.Context, w domain.Watch) (domain.Watch, error) {
	const query = `
		INSERT INTO user_currency_pairs (user_id, currency_pair_id, selected_exchanges)
		VALUES ($1, $2, $3)
		RETURNING ` + watchCols

	out, err := scanWatch(s.pool.QueryRow(ctx, query, w.UserID, w.CurrencyPairID, joinExchanges(w.SelectedExchanges)))
	if err != nil {
		return domain.Watch{}, fmt.Errorf("postgres: create watch %d/%d: %w", w.UserID, w.CurrencyPairID, mapError(err))
	}
	return out, nil
}

func (s *WatchlistStore) Get(ctx context.Context, userID, pairID int64) (domain.Watch, error) {
	const query = `SELECT ` + watchCols + ` FROM user_currency_pairs WHERE user_id = $1 AND currency_pair_id = $2`

	w, err := scanWatch(s.pool.QueryRow(ctx, query, userID, pairID))
	if err != nil {
		return domain.Watch{}, fmt.Errorf("postgres: get watch %d/%d: %w", userID, pairID, mapError(err))
	}
	return w, nil
}

func (s *WatchlistStore) ListByUser(ctx context.Context, userID int64) ([]domain.Watch, error) {
	const query = `SELECT ` + watchCols + ` FROM user_currency_pairs WHERE user_id = $1 ORDER BY currency_pair_id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list watches for %d: %w", userID, err)
	}
	defer rows.Close()

	watches := []domain.Watch{}
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan watch: %w", err)
		}
		watches = append(watches, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list watches rows: %w", err)
	}
	return watches, nil
}

// ListDetailsByUser returns a user's watches joined with pair names.
func (s *WatchlistStore) ListDetailsByUser(ctx context.Context, userID int64) ([]domain.WatchDetail, error) {
	return s.listDetails(ctx, detailSelect+` WHERE ucp.user_id = $1 ORDER BY cp.pair`, userID)
}

// ListAllDetails returns every watch of every user, grouped by pair.
func (s *WatchlistStore) ListAllDetails(ctx context.Context) ([]domain.WatchDetail, error) {
	return s.listDetails(ctx, detailSelect+` ORDER BY cp.pair, ucp.user_id`)
}

func (s *WatchlistStore) listDetails(ctx context.Context, query string, args ...any) ([]domain.WatchDetail, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list watch details: %w", err)
	}
	defer rows.Close()

	details := []domain.WatchDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan watch detail: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list watch details rows: %w", err)
	}
	return details, nil
}

// UpdateExchanges replaces the exchange selection of a watch.
func (s *WatchlistStore) UpdateExchanges(ctx context.Context, userID, pairID int64, exchanges []domain.ExchangeID) (domain.Watch, error) {
	const query = `
		UPDATE user_currency_pairs SET selected_exchanges = $3
		WHERE user_id = $1 AND currency_pair_id = $2
		RETURNING ` + watchCols

	w, err := scanWatch(s.pool.QueryRow(ctx, query, userID, pairID, joinExchanges(exchanges)))
	if err != nil {
		return domain.Watch{}, fmt.Errorf("postgres: update watch %d/%d: %w", userID, pairID, mapError(err))
	}
	return w, nil
}

func (s *WatchlistStore) Delete(ctx context.Context, userID, pairID int64) (domain.Watch, error) {
	const query = `
		DELETE FROM user_currency_pairs
		WHERE user_id = $1 AND currency_pair_id = $2
		RETURNING ` + watchCols

	w, err := scanWatch(s.pool.QueryRow(ctx, query, userID, pairID))
	if err != nil {
		return domain.Watch{}, fmt.Errorf("postgres: delete watch %d/%d: %w", userID, pairID, mapError(err))
	}
	return w, nil
}
