package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/likebank/likebank/internal/domain"
)

const orderColumns = `id, owner_user_id, kind, target_url, required_text,
	target_count, remaining_count, status, cancel_requested, created_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var kind, status string
	err := row.Scan(&o.ID, &o.OwnerUserID, &kind, &o.TargetURL, &o.RequiredText,
		&o.TargetCount, &o.RemainingCount, &status, &o.CancelRequested, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, storageErr(err)
	}
	o.Kind = domain.OrderKind(kind)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func (q *queries) CreateOrder(ctx context.Context, o *domain.Order) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO orders (owner_user_id, kind, target_url, required_text, target_count, remaining_count, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		o.OwnerUserID, string(o.Kind), o.TargetURL, o.RequiredText,
		o.TargetCount, o.RemainingCount, string(o.Status),
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", storageErr(err))
	}
	return nil
}

func (q *queries) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (q *queries) GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

func (q *queries) UpdateOrderStatus(ctx context.Context, id int64, from, to domain.OrderStatus) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", storageErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIllegalTransition
	}
	return nil
}

func (q *queries) SetOrderCancelRequested(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `UPDATE orders SET cancel_requested = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("set cancel requested: %w", storageErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (q *queries) DecrementOrderRemaining(ctx context.Context, id int64) (int, error) {
	var remaining int
	err := q.db.QueryRow(ctx,
		`UPDATE orders SET remaining_count = remaining_count - 1
		 WHERE id = $1 AND remaining_count > 0
		 RETURNING remaining_count`,
		id,
	).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrWrongState
		}
		return 0, fmt.Errorf("decrement remaining: %w", storageErr(err))
	}
	return remaining, nil
}

func (q *queries) ListActiveOrdersOwnedBy(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE owner_user_id = $1 AND status = 'active'
		 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", storageErr(err))
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}
