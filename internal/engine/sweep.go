package engine

import (
	"context"

	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/ledger"
	"github.com/likebank/likebank/internal/storage"
)

// SweepExpired returns lapsed assignments to the pool so other workers can
// take them. Released tasks belonging to an order being drained for
// cancellation are refunded and rejected instead of re-pended; that is the
// only coin movement a sweep can cause.
func (e *Engine) SweepExpired(ctx context.Context) ([]int64, error) {
	now := e.clk.Now()

	var released []int64
	err := e.withTxRetry(ctx, func(tx storage.Tx) error {
		released = nil
		ids, err := tx.ReleaseExpiredTasks(ctx, now)
		if err != nil {
			return err
		}
		released = ids

		for _, id := range ids {
			task, err := tx.GetTask(ctx, id)
			if err != nil {
				return err
			}
			order, err := tx.GetOrder(ctx, task.OrderID)
			if err != nil {
				return err
			}
			if !order.CancelRequested || order.Status != domain.OrderActive {
				continue
			}
			if err := tx.MarkTaskRejected(ctx, id, domain.RejectCancelled, now); err != nil {
				return err
			}
			if _, err := ledger.Credit(ctx, tx, order.OwnerUserID, e.cfg.UnitCost, domain.ReasonRefund, ref(id)); err != nil {
				return err
			}
			if _, err := tx.DecrementOrderRemaining(ctx, order.ID); err != nil {
				return err
			}
			if _, err := e.finalizeIfDrained(ctx, tx, order.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}
