package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/instagram"
	"github.com/likebank/likebank/internal/ledger"
	"github.com/likebank/likebank/internal/storage"
)

type CompleteOutcome string

const (
	// OutcomeVerified: the interaction checked out; the worker was credited.
	OutcomeVerified CompleteOutcome = "verified"
	// OutcomeRetryable: transient validation failure; the task returned to
	// the pool without penalizing the worker.
	OutcomeRetryable CompleteOutcome = "retryable_failure"
	// OutcomeRejectedWorkerFault: the worker did not perform the action; a
	// replacement task keeps the order whole.
	OutcomeRejectedWorkerFault CompleteOutcome = "rejected_worker_fault"
	// OutcomeRejectedRefunded: the failure was not the worker's fault; the
	// owner got one unit of coins back.
	OutcomeRejectedRefunded CompleteOutcome = "rejected_refunded"
)

type CompleteResult struct {
	Outcome     CompleteOutcome
	Reason      string
	Credited    decimal.Decimal
	NewBalance  decimal.Decimal
	OrderStatus domain.OrderStatus
}

// CompleteTask verifies the worker's interaction against Instagram and
// settles the task. The adapter call happens between the initial read and
// the mutating transaction, so the transaction wraps only the terminal
// decision and the ledger writes.
func (e *Engine) CompleteTask(ctx context.Context, p domain.Principal, taskID int64) (*CompleteResult, error) {
	now := e.clk.Now()

	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == domain.TaskAssigned && *task.AssignedUserID != p.UserID {
		return nil, domain.ErrNotYours
	}
	if task.Status != domain.TaskAssigned {
		return nil, domain.ErrWrongState
	}
	if !now.Before(*task.ExpiresAt) {
		return nil, domain.ErrExpired
	}

	order, err := e.store.GetOrder(ctx, task.OrderID)
	if err != nil {
		return nil, err
	}
	worker, err := e.store.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if worker.Banned {
		return nil, domain.ErrBanned
	}

	res, err := e.validate(ctx, worker.InstagramHandle, order)
	if err != nil {
		// Unclassified adapter failure: nothing is mutated, the task stays
		// assigned and will eventually be swept.
		return nil, fmt.Errorf("%w: validate interaction: %v", domain.ErrStorageUnavailable, err)
	}

	var result CompleteResult
	err = e.withTxRetry(ctx, func(tx storage.Tx) error {
		t, err := tx.GetTaskForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		// Re-check under lock: a racing sweep or duplicate call may have
		// moved the task.
		if t.Status != domain.TaskAssigned || *t.AssignedUserID != p.UserID {
			return domain.ErrWrongState
		}
		if !now.Before(*t.ExpiresAt) {
			return domain.ErrExpired
		}
		o, err := tx.GetOrderForUpdate(ctx, t.OrderID)
		if err != nil {
			return err
		}

		switch {
		case res.OK:
			return e.settleVerified(ctx, tx, t, o, p.UserID, &result)

		case !res.Terminal && !o.CancelRequested && t.AttemptCount < e.cfg.MaxRetries:
			if err := tx.ResetTaskToPending(ctx, t.ID); err != nil {
				return err
			}
			result = CompleteResult{
				Outcome:     OutcomeRetryable,
				Reason:      res.Reason,
				OrderStatus: o.Status,
			}
			return nil

		case res.Terminal && res.WorkerFault() && !o.CancelRequested:
			return e.settleWorkerFault(ctx, tx, t, o, res.Reason, &result)

		default:
			// Terminal failure that is not the worker's fault, a transient
			// failure out of retry budget, or any failure on an order being
			// drained for cancellation: reject and refund the owner.
			kind := domain.RejectTargetGone
			if o.CancelRequested {
				kind = domain.RejectCancelled
			}
			return e.settleRefunded(ctx, tx, t, o, kind, res.Reason, &result)
		}
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *Engine) validate(ctx context.Context, handle string, order *domain.Order) (instagram.Result, error) {
	switch order.Kind {
	case domain.KindLike:
		return e.insta.ValidateLike(ctx, handle, order.TargetURL)
	case domain.KindFollow:
		return e.insta.ValidateFollow(ctx, handle, order.TargetURL)
	case domain.KindComment:
		return e.insta.ValidateComment(ctx, handle, order.TargetURL, order.RequiredText)
	}
	return instagram.Result{}, fmt.Errorf("unknown order kind %q", order.Kind)
}

func (e *Engine) settleVerified(ctx context.Context, tx storage.Tx, t *domain.Task, o *domain.Order, workerID int64, result *CompleteResult) error {
	now := e.clk.Now()
	validationRef := uuid.NewString()
	if err := tx.MarkTaskVerified(ctx, t.ID, validationRef, now); err != nil {
		return err
	}
	balance, err := ledger.Credit(ctx, tx, workerID, e.cfg.RewardAmount, domain.ReasonTaskCredit, ref(t.ID))
	if err != nil {
		return err
	}
	status, err := e.resolveOne(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	*result = CompleteResult{
		Outcome:     OutcomeVerified,
		Credited:    e.cfg.RewardAmount,
		NewBalance:  balance,
		OrderStatus: status,
	}
	return nil
}

func (e *Engine) settleWorkerFault(ctx context.Context, tx storage.Tx, t *domain.Task, o *domain.Order, reason string, result *CompleteResult) error {
	now := e.clk.Now()
	if err := tx.MarkTaskRejected(ctx, t.ID, domain.RejectWorkerFault, now); err != nil {
		return err
	}
	// Replacement keeps target_count reachable; remaining is untouched.
	replacementIDs, err := tx.BulkCreateTasks(ctx, o.ID, 1, now)
	if err != nil {
		return err
	}
	if err := tx.SetTaskReplacedBy(ctx, t.ID, replacementIDs[0]); err != nil {
		return err
	}
	*result = CompleteResult{
		Outcome:     OutcomeRejectedWorkerFault,
		Reason:      reason,
		OrderStatus: o.Status,
	}
	return nil
}

func (e *Engine) settleRefunded(ctx context.Context, tx storage.Tx, t *domain.Task, o *domain.Order, kind domain.RejectKind, reason string, result *CompleteResult) error {
	now := e.clk.Now()
	if err := tx.MarkTaskRejected(ctx, t.ID, kind, now); err != nil {
		return err
	}
	if _, err := ledger.Credit(ctx, tx, o.OwnerUserID, e.cfg.UnitCost, domain.ReasonRefund, ref(t.ID)); err != nil {
		return err
	}
	status, err := e.resolveOne(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	*result = CompleteResult{
		Outcome:     OutcomeRejectedRefunded,
		Reason:      reason,
		OrderStatus: status,
	}
	return nil
}

// resolveOne decrements remaining for a freshly settled task and finalizes
// the order when nothing is outstanding. An order whose every interaction
// verified completes; one drained by refunds or cancellation ends cancelled.
func (e *Engine) resolveOne(ctx context.Context, tx storage.Tx, orderID int64) (domain.OrderStatus, error) {
	if _, err := tx.DecrementOrderRemaining(ctx, orderID); err != nil {
		return "", err
	}
	return e.finalizeIfDrained(ctx, tx, orderID)
}
