package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/ledger"
	"github.com/likebank/likebank/internal/storage"
)

type CancelResult struct {
	OrderStatus domain.OrderStatus
	// RefundedTasks is how many unclaimed tasks were refunded now; tasks
	// still assigned run to their natural conclusion first.
	RefundedTasks int
	Refunded      decimal.Decimal
	NewBalance    decimal.Decimal
}

// CancelOrder rejects and refunds every still-pending task of the order.
// Assigned tasks are left to finish; the order carries cancel_requested
// until the last of them resolves, at which point it finalizes as cancelled.
func (e *Engine) CancelOrder(ctx context.Context, p domain.Principal, orderID int64) (*CancelResult, error) {
	now := e.clk.Now()

	var result CancelResult
	err := e.withTxRetry(ctx, func(tx storage.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.OwnerUserID != p.UserID && !p.IsAdmin {
			return domain.ErrNotOwner
		}
		if order.Status != domain.OrderActive {
			return domain.ErrIllegalTransition
		}

		pending, err := tx.ListPendingTasksByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		refunded := decimal.Zero
		for _, t := range pending {
			if err := tx.MarkTaskRejected(ctx, t.ID, domain.RejectCancelled, now); err != nil {
				return err
			}
			if _, err := ledger.Credit(ctx, tx, order.OwnerUserID, e.cfg.UnitCost, domain.ReasonRefund, ref(t.ID)); err != nil {
				return err
			}
			if _, err := tx.DecrementOrderRemaining(ctx, orderID); err != nil {
				return err
			}
			refunded = refunded.Add(e.cfg.UnitCost)
		}

		if err := tx.SetOrderCancelRequested(ctx, orderID); err != nil {
			return err
		}

		status, err := e.finalizeIfDrained(ctx, tx, orderID)
		if err != nil {
			return err
		}
		balance, err := ledger.Balance(ctx, tx, order.OwnerUserID)
		if err != nil {
			return err
		}
		result = CancelResult{
			OrderStatus:   status,
			RefundedTasks: len(pending),
			Refunded:      refunded,
			NewBalance:    balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// finalizeIfDrained finalizes an active order whose remaining count reached
// zero; anything short of full verification ends cancelled.
func (e *Engine) finalizeIfDrained(ctx context.Context, tx storage.Tx, orderID int64) (domain.OrderStatus, error) {
	order, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.Status != domain.OrderActive || order.RemainingCount > 0 {
		return order.Status, nil
	}
	verified, err := tx.CountVerifiedTasks(ctx, orderID)
	if err != nil {
		return "", err
	}
	final := domain.OrderCompleted
	if verified < order.TargetCount {
		final = domain.OrderCancelled
	}
	if err := tx.UpdateOrderStatus(ctx, orderID, domain.OrderActive, final); err != nil {
		return "", err
	}
	return final, nil
}
