package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func TestUsersUniqueTelegramID(t *testing.T) {
	ctx := context.Background()
	users := New().Users()

	u, err := users.Create(ctx, domain.User{TelegramID: "42", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	_, err = users.Create(ctx, domain.User{TelegramID: "42"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	got, err := users.GetByTelegramID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = users.GetByID(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	pairs := New().Pairs()
	for _, p := range []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"} {
		_, err := pairs.Create(ctx, p)
		require.NoError(t, err)
	}

	got, err := pairs.List(ctx, domain.ListOpts{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ETHUSDT", got[0].Pair)

	got, err = pairs.List(ctx, domain.ListOpts{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWatchForeignKeysAndCascade(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, _ := s.Users().Create(ctx, domain.User{TelegramID: "1"})
	p, _ := s.Pairs().Create(ctx, "BTCUSDT")

	_, err := s.Watchlist().Create(ctx, domain.Watch{UserID: 7, CurrencyPairID: p.ID})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Watchlist().Create(ctx, domain.Watch{UserID: u.ID, CurrencyPairID: p.ID, SelectedExchanges: []domain.ExchangeID{domain.ExchangeMEXC}})
	require.NoError(t, err)
	_, err = s.Watchlist().Create(ctx, domain.Watch{UserID: u.ID, CurrencyPairID: p.ID})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	details, err := s.Watchlist().ListAllDetails(ctx)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "BTCUSDT", details[0].Pair)
	assert.Equal(t, "1", details[0].TelegramID)

	_, err = s.Pairs().Delete(ctx, "BTCUSDT")
	require.NoError(t, err)
	watches, err := s.Watchlist().ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, watches)
}

func TestChecksOrdering(t *testing.T) {
	ctx := context.Background()
	checks := New().Checks()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, checks.Insert(ctx, domain.ArbitrageCheck{ID: id, CheckedAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	assert.ErrorIs(t, checks.Insert(ctx, domain.ArbitrageCheck{ID: "a"}), domain.ErrAlreadyExists)

	recent, err := checks.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)

	old, err := checks.ListBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, old, 2)
	assert.Equal(t, "a", old[0].ID)

	n, err := checks.DeleteBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	recent, _ = checks.ListRecent(ctx, 0)
	require.Len(t, recent, 1)
	assert.Equal(t, "c", recent[0].ID)
}
