// Package policy chooses the next task for a worker. Choose is a pure
// function: given the same candidates it always picks the same task, so
// dispatch order is deterministic and starvation-free. All wall-clock and
// randomness concerns live in the caller.
package policy

import (
	"sort"

	"github.com/likebank/likebank/internal/storage"
)

// Choose returns the best candidate for the worker, or nil when none is
// eligible. Rules, first match wins:
//  1. skip tasks from orders the worker owns
//  2. skip orders where the worker already has a verified task
//  3. skip orders where the worker was rejected for their own fault
//  4. among the rest, oldest task first; ties broken by lowest order id,
//     then lowest task id
func Choose(workerID int64, candidates []storage.CandidateTask) *storage.CandidateTask {
	eligible := make([]storage.CandidateTask, 0, len(candidates))
	for _, c := range candidates {
		if c.OwnerUserID == workerID {
			continue
		}
		if c.VerifiedInOrder {
			continue
		}
		if c.FaultedInOrder {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if !a.TaskCreatedAt.Equal(b.TaskCreatedAt) {
			return a.TaskCreatedAt.Before(b.TaskCreatedAt)
		}
		if a.OrderID != b.OrderID {
			return a.OrderID < b.OrderID
		}
		return a.TaskID < b.TaskID
	})
	return &eligible[0]
}
