// Package engine implements the order/task engine: placing orders, dispatching
// tasks to workers, verifying completed work against Instagram, and moving
// coins accordingly. The engine talks only to its injected collaborators
// (store, adapter, clock); it never logs, sleeps, or touches HTTP.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/likebank/likebank/internal/clock"
	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/instagram"
	"github.com/likebank/likebank/internal/ledger"
	"github.com/likebank/likebank/internal/storage"
)

type Config struct {
	// UnitCost is debited from the owner per requested interaction.
	UnitCost decimal.Decimal
	// RewardAmount is credited to the worker per verified task.
	// Must not exceed UnitCost.
	RewardAmount decimal.Decimal
	// AssignmentWindow is how long a claimed task stays assigned before it
	// is eligible for release.
	AssignmentWindow time.Duration
	// MaxRetries bounds transient validation failures per task.
	MaxRetries int
	// MaxCandidatesPerTake bounds the candidate set surfaced to the policy.
	MaxCandidatesPerTake int
	// ClaimAttempts bounds internal retries when a claim loses a race.
	ClaimAttempts int
	// TxAttempts bounds internal retries on transient storage errors.
	TxAttempts int
}

func (c *Config) applyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.MaxCandidatesPerTake == 0 {
		c.MaxCandidatesPerTake = 20
	}
	if c.ClaimAttempts == 0 {
		c.ClaimAttempts = 3
	}
	if c.TxAttempts == 0 {
		c.TxAttempts = 3
	}
	if c.AssignmentWindow == 0 {
		c.AssignmentWindow = 10 * time.Minute
	}
}

type Engine struct {
	store storage.Store
	insta instagram.Adapter
	clk   clock.Clock
	cfg   Config
}

func New(store storage.Store, insta instagram.Adapter, clk clock.Clock, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{store: store, insta: insta, clk: clk, cfg: cfg}
}

// withTxRetry retries transactions lost to contention or transient storage
// failures a bounded number of times before surfacing the error.
func (e *Engine) withTxRetry(ctx context.Context, fn func(storage.Tx) error) error {
	var err error
	for attempt := 0; attempt < e.cfg.TxAttempts; attempt++ {
		err = e.store.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, domain.ErrStorageUnavailable) {
			return err
		}
	}
	return err
}

type OrderSpec struct {
	Kind         domain.OrderKind
	TargetURL    string
	TargetCount  int
	RequiredText string
}

type PlaceOrderResult struct {
	OrderID    int64
	TaskIDs    []int64
	Cost       decimal.Decimal
	NewBalance decimal.Decimal
}

// PlaceOrder debits the owner, creates the order, and materializes its tasks
// in one transaction: either all of it exists afterwards, or none.
func (e *Engine) PlaceOrder(ctx context.Context, p domain.Principal, spec OrderSpec) (*PlaceOrderResult, error) {
	if !spec.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidTarget, spec.Kind)
	}
	if spec.TargetCount < 1 {
		return nil, fmt.Errorf("%w: target_count must be at least 1", domain.ErrInvalidTarget)
	}
	if spec.Kind == domain.KindComment && spec.RequiredText == "" {
		return nil, fmt.Errorf("%w: comment orders need required_text", domain.ErrInvalidTarget)
	}
	if spec.Kind != domain.KindComment {
		spec.RequiredText = ""
	}
	if err := instagram.ValidateTargetURL(spec.Kind, spec.TargetURL); err != nil {
		return nil, err
	}

	now := e.clk.Now()
	cost := e.cfg.UnitCost.Mul(decimal.NewFromInt(int64(spec.TargetCount)))

	var result PlaceOrderResult
	err := e.withTxRetry(ctx, func(tx storage.Tx) error {
		owner, err := tx.GetUser(ctx, p.UserID)
		if err != nil {
			return err
		}
		if owner.Banned {
			return domain.ErrBanned
		}

		order := &domain.Order{
			OwnerUserID:    p.UserID,
			Kind:           spec.Kind,
			TargetURL:      spec.TargetURL,
			RequiredText:   spec.RequiredText,
			TargetCount:    spec.TargetCount,
			RemainingCount: spec.TargetCount,
			Status:         domain.OrderActive,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		balance, err := ledger.Debit(ctx, tx, p.UserID, cost, domain.ReasonOrderDebit, ref(order.ID))
		if err != nil {
			return err
		}

		taskIDs, err := tx.BulkCreateTasks(ctx, order.ID, spec.TargetCount, now)
		if err != nil {
			return err
		}

		result = PlaceOrderResult{
			OrderID:    order.ID,
			TaskIDs:    taskIDs,
			Cost:       cost,
			NewBalance: balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListOrders returns the principal's active orders.
func (e *Engine) ListOrders(ctx context.Context, p domain.Principal) ([]domain.Order, error) {
	return e.store.ListActiveOrdersOwnedBy(ctx, p.UserID)
}

type BalanceView struct {
	Balance decimal.Decimal
	Recent  []domain.CoinEntry
}

// Balance returns the principal's coin balance and recent ledger entries.
func (e *Engine) Balance(ctx context.Context, p domain.Principal, historyLimit int) (*BalanceView, error) {
	user, err := e.store.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.ListCoinEntries(ctx, p.UserID, historyLimit)
	if err != nil {
		return nil, err
	}
	return &BalanceView{Balance: user.CoinBalance, Recent: entries}, nil
}

// ref formats a row id as a ledger idempotency reference.
func ref(id int64) string { return strconv.FormatInt(id, 10) }
