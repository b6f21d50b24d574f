package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// CheckStore implements domain.CheckStore using PostgreSQL. The full report
// is kept as JSONB; the result fields are duplicated into columns so the log
// can be queried without decoding it.
type CheckStore struct {
	pool *pgxpool.Pool
}

// NewCheckStore creates a new CheckStore backed by the given connection pool.
func NewCheckStore(pool *pgxpool.Pool) *CheckStore {
	return &CheckStore{pool: pool}
}

const checkSelect = `SELECT id, symbol, source, capital, error, report, checked_at FROM arb_checks`

// checkRow is the column projection of one check.
type checkRow struct {
	buyExchange, sellExchange *string
	buyPrice, sellPrice       decimal.NullDecimal
	profit, profitPct         decimal.NullDecimal
	report                    []byte
}

func toCheckRow(c domain.ArbitrageCheck) (checkRow, error) {
	report, err := json.Marshal(c.Report)
	if err != nil {
		return checkRow{}, err
	}
	row := checkRow{report: report}
	if r := c.Report.Result; r != nil {
		buy, sell := string(r.BuyExchange), string(r.SellExchange)
		row.buyExchange, row.sellExchange = &buy, &sell
		row.buyPrice = decimal.NewNullDecimal(r.BuyPrice)
		row.sellPrice = decimal.NewNullDecimal(r.SellPrice)
		row.profit = decimal.NewNullDecimal(r.Profit)
		row.profitPct = decimal.NewNullDecimal(r.ProfitPct)
	}
	return row, nil
}

func scanCheck(row rowScanner) (domain.ArbitrageCheck, error) {
	var (
		c      domain.ArbitrageCheck
		source string
		report []byte
	)
	if err := row.Scan(&c.ID, &c.Symbol, &source, &c.Capital, &c.Error, &report, &c.CheckedAt); err != nil {
		return domain.ArbitrageCheck{}, err
	}
	c.Source = domain.CheckSource(source)
	if err := json.Unmarshal(report, &c.Report); err != nil {
		return domain.ArbitrageCheck{}, fmt.Errorf("decode report %s: %w", c.ID, err)
	}
	return c, nil
}

// Insert appends a check to the log.
func (s *CheckStore) Insert(ctx context.Context, c domain.ArbitrageCheck) error {
	const query = `
		INSERT INTO arb_checks (
			id, symbol, source, capital,
			buy_exchange, buy_price, sell_exchange, sell_price,
			profit, profit_pct, error, report, checked_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13
		)`

	row, err := toCheckRow(c)
	if err != nil {
		return fmt.Errorf("postgres: encode check %s: %w", c.ID, err)
	}
	_, err = s.pool.Exec(ctx, query,
		c.ID, c.Symbol, string(c.Source), c.Capital,
		row.buyExchange, row.buyPrice, row.sellExchange, row.sellPrice,
		row.profit, row.profitPct, c.Error, row.report, c.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert check %s: %w", c.ID, mapError(err))
	}
	return nil
}

// ListRecent returns the newest checks first.
func (s *CheckStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageCheck, error) {
	return s.list(ctx, checkSelect+` ORDER BY checked_at DESC LIMIT $1`, limitOrDefault(limit))
}

// ListBefore returns every check older than before, oldest first.
func (s *CheckStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageCheck, error) {
	return s.list(ctx, checkSelect+` WHERE checked_at < $1 ORDER BY checked_at`, before)
}

// DeleteBefore removes checks older than before and returns how many went.
func (s *CheckStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM arb_checks WHERE checked_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete checks before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func (s *CheckStore) list(ctx context.Context, query string, args ...any) ([]domain.ArbitrageCheck, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list checks: %w", err)
	}
	defer rows.Close()

	checks := []domain.ArbitrageCheck{}
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan check: %w", err)
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list checks rows: %w", err)
	}
	return checks, nil
}
