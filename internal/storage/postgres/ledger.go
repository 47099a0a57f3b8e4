package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/likebank/likebank/internal/domain"
)

func (q *queries) InsertCoinEntry(ctx context.Context, e *domain.CoinEntry) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO coin_entries (user_id, delta, reason, ref)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		e.UserID, e.Delta, string(e.Reason), e.Ref,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEntry
		}
		return fmt.Errorf("insert coin entry: %w", storageErr(err))
	}
	return nil
}

func (q *queries) SumCoinDeltas(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM coin_entries WHERE user_id = $1`, userID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum coin deltas: %w", storageErr(err))
	}
	return sum, nil
}

func (q *queries) ListCoinEntries(ctx context.Context, userID int64, limit int) ([]domain.CoinEntry, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, user_id, delta, reason, ref, created_at
		 FROM coin_entries WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list coin entries: %w", storageErr(err))
	}
	defer rows.Close()

	var out []domain.CoinEntry
	for rows.Next() {
		var e domain.CoinEntry
		var reason string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &reason, &e.Ref, &e.CreatedAt); err != nil {
			return nil, storageErr(err)
		}
		e.Reason = domain.CoinReason(reason)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, storageErr(err)
	}
	return out, nil
}
