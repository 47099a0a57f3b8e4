package engine

import (
	"context"
	"time"

	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/policy"
)

// TaskView is what a worker sees after claiming a task.
type TaskView struct {
	TaskID       int64
	OrderID      int64
	Kind         domain.OrderKind
	TargetURL    string
	RequiredText string
	Deadline     time.Time
}

// TakeTask assigns the next eligible task to the worker. The claim is a
// store-level compare-and-set: when two workers race for the same candidate
// exactly one wins, and the loser refetches a bounded number of times before
// reporting no tasks.
func (e *Engine) TakeTask(ctx context.Context, p domain.Principal) (*TaskView, error) {
	worker, err := e.store.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if worker.Banned {
		return nil, domain.ErrBanned
	}

	active, err := e.store.ActiveTaskFor(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, domain.ErrHasActiveTask
	}

	now := e.clk.Now()
	deadline := now.Add(e.cfg.AssignmentWindow)

	for attempt := 0; attempt < e.cfg.ClaimAttempts; attempt++ {
		candidates, err := e.store.FindCandidateTasks(ctx, p.UserID, e.cfg.MaxCandidatesPerTake)
		if err != nil {
			return nil, err
		}
		choice := policy.Choose(p.UserID, candidates)
		if choice == nil {
			return nil, domain.ErrNoTasksAvailable
		}

		claimed, err := e.store.ClaimTask(ctx, choice.TaskID, p.UserID, now, deadline)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Lost the race; refetch and try again.
			continue
		}

		order, err := e.store.GetOrder(ctx, choice.OrderID)
		if err != nil {
			return nil, err
		}
		return &TaskView{
			TaskID:       choice.TaskID,
			OrderID:      order.ID,
			Kind:         order.Kind,
			TargetURL:    order.TargetURL,
			RequiredText: order.RequiredText,
			Deadline:     deadline,
		}, nil
	}
	return nil, domain.ErrNoTasksAvailable
}
