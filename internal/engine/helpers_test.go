package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likebank/likebank/internal/clock"
	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/engine"
	"github.com/likebank/likebank/internal/instagram"
	"github.com/likebank/likebank/internal/storage/memory"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const window = time.Minute

type env struct {
	store *memory.Store
	clk   *clock.Manual
	insta *instagram.Fake
	eng   *engine.Engine
	seeds map[int64]decimal.Decimal
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store: memory.New(),
		clk:   clock.NewManual(t0),
		insta: instagram.NewFake(),
		seeds: make(map[int64]decimal.Decimal),
	}
	e.eng = engine.New(e.store, e.insta, e.clk, engine.Config{
		UnitCost:         dec(10),
		RewardAmount:     dec(8),
		AssignmentWindow: window,
		MaxRetries:       2,
	})
	return e
}

func (e *env) seed(t *testing.T, handle string, balance int64) domain.Principal {
	t.Helper()
	id := e.store.SeedUser(handle, dec(balance))
	e.seeds[id] = dec(balance)
	return domain.Principal{UserID: id}
}

func (e *env) balance(t *testing.T, p domain.Principal) decimal.Decimal {
	t.Helper()
	u, err := e.store.GetUser(context.Background(), p.UserID)
	require.NoError(t, err)
	return u.CoinBalance
}

func (e *env) placeLike(t *testing.T, p domain.Principal, count int) *engine.PlaceOrderResult {
	t.Helper()
	res, err := e.eng.PlaceOrder(context.Background(), p, engine.OrderSpec{
		Kind:        domain.KindLike,
		TargetURL:   "https://www.instagram.com/p/Cxyz123/",
		TargetCount: count,
	})
	require.NoError(t, err)
	return res
}

func (e *env) take(t *testing.T, p domain.Principal) *engine.TaskView {
	t.Helper()
	view, err := e.eng.TakeTask(context.Background(), p)
	require.NoError(t, err)
	return view
}

func (e *env) complete(t *testing.T, p domain.Principal, taskID int64) *engine.CompleteResult {
	t.Helper()
	res, err := e.eng.CompleteTask(context.Background(), p, taskID)
	require.NoError(t, err)
	return res
}

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func assertEq(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %d, got %s", want, got)
}

// checkInvariants asserts the cross-cutting properties that must hold after
// every committed operation: the ledger/projection identity and non-negative
// balances, per-order task accounting, single active assignment, no
// self-assignment, and unique verified credit per (order, worker).
func checkInvariants(t *testing.T, e *env) {
	t.Helper()

	users := e.store.AllUsers()
	entries := e.store.AllEntries()
	orders := e.store.AllOrders()
	tasks := e.store.AllTasks()

	// Ledger sums match cached balances; balances never negative.
	sums := make(map[int64]decimal.Decimal)
	for _, entry := range entries {
		sums[entry.UserID] = sums[entry.UserID].Add(entry.Delta)
	}
	for _, u := range users {
		expected := e.seeds[u.ID].Add(sums[u.ID])
		assert.True(t, u.CoinBalance.Equal(expected),
			"user %d: balance %s, seed+entries %s", u.ID, u.CoinBalance, expected)
		assert.False(t, u.CoinBalance.IsNegative(), "user %d went negative", u.ID)
	}

	owners := make(map[int64]int64)
	remaining := make(map[int64]int)
	targets := make(map[int64]int)
	for _, o := range orders {
		owners[o.ID] = o.OwnerUserID
		remaining[o.ID] = o.RemainingCount
		targets[o.ID] = o.TargetCount
	}

	accounted := make(map[int64]int) // order -> live + verified + unreplaced-rejected
	verifiedBy := make(map[[2]int64]int)
	assignedBy := make(map[int64]int)
	for _, task := range tasks {
		switch task.Status {
		case domain.TaskPending, domain.TaskVerified:
			accounted[task.OrderID]++
		case domain.TaskAssigned:
			accounted[task.OrderID]++
			require.NotNil(t, task.AssignedUserID, "assigned task %d has no assignee", task.ID)
			require.NotNil(t, task.ExpiresAt, "assigned task %d has no deadline", task.ID)
			assignedBy[*task.AssignedUserID]++
			assert.NotEqual(t, owners[task.OrderID], *task.AssignedUserID,
				"task %d assigned to its order owner", task.ID)
		case domain.TaskRejected:
			if task.ReplacedByTaskID == nil {
				accounted[task.OrderID]++
			}
		}
		if task.Status == domain.TaskVerified {
			require.NotNil(t, task.AssignedUserID)
			verifiedBy[[2]int64{task.OrderID, *task.AssignedUserID}]++
			assert.NotEqual(t, owners[task.OrderID], *task.AssignedUserID,
				"task %d verified for its order owner", task.ID)
		}
	}
	for orderID, target := range targets {
		assert.Equal(t, target, accounted[orderID], "order %d task accounting", orderID)
	}
	for userID, n := range assignedBy {
		assert.LessOrEqual(t, n, 1, "user %d holds %d assignments", userID, n)
	}
	for key, n := range verifiedBy {
		assert.Equal(t, 1, n, "order %d verified %d tasks for worker %d", key[0], n, key[1])
	}
	_ = remaining
}
