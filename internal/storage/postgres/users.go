package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/likebank/likebank/internal/domain"
)

const userColumns = `id, instagram_handle, coin_balance, banned, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.InstagramHandle, &u.CoinBalance, &u.Banned, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storageErr(err)
	}
	return &u, nil
}

func (q *queries) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (q *queries) GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	return scanUser(row)
}

func (q *queries) AdjustUserBalance(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.db.QueryRow(ctx,
		`UPDATE users SET coin_balance = coin_balance + $2 WHERE id = $1 RETURNING coin_balance`,
		id, delta,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("adjust balance: %w", storageErr(err))
	}
	return balance, nil
}
