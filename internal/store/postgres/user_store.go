package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userCols = `id, telegram_id, username, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.CreatedAt)
	return u, err
}

// Create inserts a user. A duplicate telegram_id yields domain.ErrAlreadyExists.
func (s *UserStore) Create(ctx context.Context, user domain.User) (domain.User, error) {
	const query = `
		INSERT INTO users (telegram_id, username)
		VALUES ($1, $2)
		RETURNING ` + userCols

	u, err := scanUser(s.pool.QueryRow(ctx, query, user.TelegramID, user.Username))
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: create user %s: %w", user.TelegramID, mapError(err))
	}
	return u, nil
}

// GetByID returns the user with the given primary key.
func (s *UserStore) GetByID(ctx context.Context, id int64) (domain.User, error) {
	const query = `SELECT ` + userCols + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: get user %d: %w", id, mapError(err))
	}
	return u, nil
}

// GetByTelegramID returns the user registered for a Telegram account.
func (s *UserStore) GetByTelegramID(ctx context.Context, telegramID string) (domain.User, error) {
	const query = `SELECT ` + userCols + ` FROM users WHERE telegram_id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: get user by telegram id %s: %w", telegramID, mapError(err))
	}
	return u, nil
}

// List returns users ordered by id.
func (s *UserStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.User, error) {
	const query = `SELECT ` + userCols + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limitOrDefault(opts.Limit), max(opts.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list users rows: %w", err)
	}
	return users, nil
}

// Delete removes a user and, through the cascade, their watches. The deleted
// row is returned.
func (s *UserStore) Delete(ctx context.Context, id int64) (domain.User, error) {
	const query = `DELETE FROM users WHERE id = $1 RETURNING ` + userCols

	u, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: delete user %d: %w", id, mapError(err))
	}
	return u, nil
}
