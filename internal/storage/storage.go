// Package storage defines the transactional store the engine is written
// against. Any implementation with compare-and-set claim semantics that
// keeps the documented invariants under concurrent callers is acceptable;
// internal/storage/postgres is the production one, internal/storage/memory
// the hermetic one for tests.
package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/likebank/likebank/internal/domain"
)

// CandidateTask is the slim row surfaced to the assignment policy. The
// flags carry the worker-history facts the policy filters on.
type CandidateTask struct {
	TaskID        int64
	OrderID       int64
	OwnerUserID   int64
	TaskCreatedAt time.Time
	// VerifiedInOrder: the worker already has a verified task in this order.
	VerifiedInOrder bool
	// FaultedInOrder: the worker had a worker-fault rejection in this order.
	FaultedInOrder bool
}

// Tx is the set of operations available inside a transaction. All reads on
// *ForUpdate methods lock the row for the rest of the transaction.
type Tx interface {
	// Users
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error)
	// AdjustUserBalance applies a signed delta to the cached balance
	// projection and returns the new balance.
	AdjustUserBalance(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error)

	// Ledger entries
	// InsertCoinEntry fills e.ID and e.CreatedAt. Returns
	// domain.ErrDuplicateEntry when (reason, ref) already exists.
	InsertCoinEntry(ctx context.Context, e *domain.CoinEntry) error
	SumCoinDeltas(ctx context.Context, userID int64) (decimal.Decimal, error)
	ListCoinEntries(ctx context.Context, userID int64, limit int) ([]domain.CoinEntry, error)

	// Orders
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	// UpdateOrderStatus is a compare-and-set; returns
	// domain.ErrIllegalTransition if the order is not in from.
	UpdateOrderStatus(ctx context.Context, id int64, from, to domain.OrderStatus) error
	SetOrderCancelRequested(ctx context.Context, id int64) error
	// DecrementOrderRemaining atomically decrements remaining_count and
	// returns the new value; domain.ErrWrongState if it would go negative.
	DecrementOrderRemaining(ctx context.Context, id int64) (int, error)
	ListActiveOrdersOwnedBy(ctx context.Context, userID int64) ([]domain.Order, error)

	// Tasks
	BulkCreateTasks(ctx context.Context, orderID int64, count int, now time.Time) ([]int64, error)
	GetTask(ctx context.Context, id int64) (*domain.Task, error)
	GetTaskForUpdate(ctx context.Context, id int64) (*domain.Task, error)
	// ActiveTaskFor returns the worker's currently assigned task, or nil.
	ActiveTaskFor(ctx context.Context, userID int64) (*domain.Task, error)
	// ClaimTask moves a task pending -> assigned for userID iff the task is
	// still pending, the worker does not own the order, and the worker holds
	// no other assigned task. Returns false when the claim loses.
	// This is the single linearization point for dispatch.
	ClaimTask(ctx context.Context, taskID, userID int64, now, deadline time.Time) (bool, error)
	// ReleaseExpiredTasks returns assigned tasks with expires_at <= now to
	// pending, incrementing attempt_count and clearing assignment fields.
	ReleaseExpiredTasks(ctx context.Context, now time.Time) ([]int64, error)
	// MarkTaskVerified is a compare-and-set assigned -> verified.
	MarkTaskVerified(ctx context.Context, taskID int64, validationRef string, now time.Time) error
	// MarkTaskRejected moves a pending or assigned task to rejected.
	MarkTaskRejected(ctx context.Context, taskID int64, kind domain.RejectKind, now time.Time) error
	// ResetTaskToPending returns an assigned task to the pool and
	// increments attempt_count.
	ResetTaskToPending(ctx context.Context, taskID int64) error
	SetTaskReplacedBy(ctx context.Context, taskID, replacementID int64) error
	ListTasksByOrder(ctx context.Context, orderID int64) ([]domain.Task, error)
	ListPendingTasksByOrder(ctx context.Context, orderID int64) ([]domain.Task, error)
	CountVerifiedTasks(ctx context.Context, orderID int64) (int, error)
	// FindCandidateTasks returns up to limit pending tasks from orders the
	// worker does not own, oldest first, with worker-history flags filled.
	FindCandidateTasks(ctx context.Context, workerID int64, limit int) ([]CandidateTask, error)
}

// Store is a Tx that also opens transactions. Methods called directly on
// the Store run in autocommit mode.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(Tx) error) error
}
