package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// CurrencyPairStore implements domain.CurrencyPairStore using PostgreSQL.
type CurrencyPairStore struct {
	pool *pgxpool.Pool
}

// NewCurrencyPairStore creates a new CurrencyPairStore backed by the given pool.
func NewCurrencyPairStore(pool *pgxpool.Pool) *CurrencyPairStore {
	return &CurrencyPairStore{pool: pool}
}

func scanPair(row rowScanner) (domain.CurrencyPair, error) {
	var p domain.CurrencyPair
	err := row.Scan(&p.ID, &p.Pair)
	return p, err
}

// Create inserts a pair. The caller is expected to pass a canonical symbol.
func (s *CurrencyPairStore) Create(ctx context.Context, pair string) (domain.CurrencyPair, error) {
	const query = `INSERT INTO currency_pairs (pair) VALUES ($1) RETURNING id, pair`

	p, err := scanPair(s.pool.QueryRow(ctx, query, pair))
	if err != nil {
		return domain.CurrencyPair{}, fmt.Errorf("postgres: create pair %s: %w", pair, mapError(err))
	}
	return p, nil
}

func (s *CurrencyPairStore) GetByPair(ctx context.Context, pair string) (domain.CurrencyPair, error) {
	const query = `SELECT id, pair FROM currency_pairs WHERE pair = $1`

	p, err := scanPair(s.pool.QueryRow(ctx, query, pair))
	if err != nil {
		return domain.CurrencyPair{}, fmt.Errorf("postgres: get pair %s: %w", pair, mapError(err))
	}
	return p, nil
}

func (s *CurrencyPairStore) GetByID(ctx context.Context, id int64) (domain.CurrencyPair, error) {
	const query = `SELECT id, pair FROM currency_pairs WHERE id = $1`

	p, err := scanPair(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.CurrencyPair{}, fmt.Errorf("postgres: get pair %d: %w", id, mapError(err))
	}
	return p, nil
}

// List returns pairs in alphabetical order.
func (s *CurrencyPairStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.CurrencyPair, error) {
	const query = `SELECT id, pair FROM currency_pairs ORDER BY pair LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limitOrDefault(opts.Limit), max(opts.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("postgres: list pairs: %w", err)
	}
	defer rows.Close()

	pairs := []domain.CurrencyPair{}
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pairs rows: %w", err)
	}
	return pairs, nil
}

// Delete removes a pair and every watch on it.
func (s *CurrencyPairStore) Delete(ctx context.Context, pair string) (domain.CurrencyPair, error) {
	const query = `DELETE FROM currency_pairs WHERE pair = $1 RETURNING id, pair`

	p, err := scanPair(s.pool.QueryRow(ctx, query, pair))
	if err != nil {
		return domain.CurrencyPair{}, fmt.Errorf("postgres: delete pair %s: %w", pair, mapError(err))
	}
	return p, nil
}
