package postgres_test

import (
	"context"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	likebank "github.com/likebank/likebank"
	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/storage"
	"github.com/likebank/likebank/internal/storage/postgres"
)

// These tests need a real database; set TEST_DATABASE_URL to run them.
func testStore(t *testing.T) (*postgres.Store, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrationsFS, err := fs.Sub(likebank.MigrationsFS, "migrations")
	require.NoError(t, err)
	require.NoError(t, postgres.RunMigrations(url, migrationsFS))

	_, err = pool.Exec(ctx, "TRUNCATE coin_entries, tasks, orders, users RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	return postgres.New(pool), pool
}

func seedUser(t *testing.T, pool *pgxpool.Pool, handle string, balance int64) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		"INSERT INTO users (instagram_handle, coin_balance) VALUES ($1, $2) RETURNING id",
		handle, decimal.NewFromInt(balance)).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestClaimTaskExclusiveAgainstDatabase(t *testing.T) {
	store, pool := testStore(t)
	ctx := context.Background()

	owner := seedUser(t, pool, "owner", 100)
	w1 := seedUser(t, pool, "w1", 0)
	w2 := seedUser(t, pool, "w2", 0)

	order := &domain.Order{
		OwnerUserID:    owner,
		Kind:           domain.KindLike,
		TargetURL:      "https://www.instagram.com/p/abc/",
		TargetCount:    1,
		RemainingCount: 1,
		Status:         domain.OrderActive,
	}
	require.NoError(t, store.CreateOrder(ctx, order))
	taskIDs, err := store.BulkCreateTasks(ctx, order.ID, 1, time.Now())
	require.NoError(t, err)

	now := time.Now()
	deadline := now.Add(time.Minute)

	ok, err := store.ClaimTask(ctx, taskIDs[0], owner, now, deadline)
	require.NoError(t, err)
	assert.False(t, ok, "owner must not claim their own task")

	ok, err = store.ClaimTask(ctx, taskIDs[0], w1, now, deadline)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ClaimTask(ctx, taskIDs[0], w2, now, deadline)
	require.NoError(t, err)
	assert.False(t, ok)

	active, err := store.ActiveTaskFor(ctx, w1)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, taskIDs[0], active.ID)
}

func TestCoinEntryUniquenessAgainstDatabase(t *testing.T) {
	store, pool := testStore(t)
	ctx := context.Background()

	userID := seedUser(t, pool, "alice", 0)

	entry := &domain.CoinEntry{
		UserID: userID,
		Delta:  decimal.NewFromInt(8),
		Reason: domain.ReasonTaskCredit,
		Ref:    "42",
	}
	require.NoError(t, store.InsertCoinEntry(ctx, entry))

	dup := *entry
	err := store.InsertCoinEntry(ctx, &dup)
	require.ErrorIs(t, err, domain.ErrDuplicateEntry)
}

func TestWithTxRollbackAgainstDatabase(t *testing.T) {
	store, pool := testStore(t)
	ctx := context.Background()

	userID := seedUser(t, pool, "bob", 100)

	wantErr := assert.AnError
	err := store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.AdjustUserBalance(ctx, userID, decimal.NewFromInt(-40)); err != nil {
			return err
		}
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	user, err := store.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.True(t, user.CoinBalance.Equal(decimal.NewFromInt(100)), "balance %s", user.CoinBalance)
}

func TestDecrementOrderRemainingGuardAgainstDatabase(t *testing.T) {
	store, pool := testStore(t)
	ctx := context.Background()

	owner := seedUser(t, pool, "owner", 0)
	order := &domain.Order{
		OwnerUserID:    owner,
		Kind:           domain.KindFollow,
		TargetURL:      "https://www.instagram.com/someone/",
		TargetCount:    1,
		RemainingCount: 1,
		Status:         domain.OrderActive,
	}
	require.NoError(t, store.CreateOrder(ctx, order))

	left, err := store.DecrementOrderRemaining(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	_, err = store.DecrementOrderRemaining(ctx, order.ID)
	require.Error(t, err)
}
