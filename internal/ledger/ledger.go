// Package ledger is the authoritative record of coin movements. Every
// movement appends a CoinEntry and updates the cached balance projection in
// the same transaction. (reason, ref) is an idempotency key: a retried call
// with the same pair leaves the ledger untouched and reports the prior
// balance.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/storage"
)

// Credit adds amount to the user's balance. amount must be positive.
func Credit(ctx context.Context, tx storage.Tx, userID int64, amount decimal.Decimal, reason domain.CoinReason, ref string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	// Lock the row so the projection update is serialized.
	user, err := tx.GetUserForUpdate(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("lock user: %w", err)
	}

	err = tx.InsertCoinEntry(ctx, &domain.CoinEntry{
		UserID: userID,
		Delta:  amount,
		Reason: reason,
		Ref:    ref,
	})
	if errors.Is(err, domain.ErrDuplicateEntry) {
		// Already applied; benign.
		return user.CoinBalance, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("record credit: %w", err)
	}

	newBalance, err := tx.AdjustUserBalance(ctx, userID, amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("apply credit: %w", err)
	}
	return newBalance, nil
}

// Debit subtracts amount from the user's balance, failing with
// domain.ErrInsufficientFunds when the balance does not cover it.
func Debit(ctx context.Context, tx storage.Tx, userID int64, amount decimal.Decimal, reason domain.CoinReason, ref string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	user, err := tx.GetUserForUpdate(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("lock user: %w", err)
	}
	if user.CoinBalance.LessThan(amount) {
		return decimal.Zero, domain.ErrInsufficientFunds
	}

	err = tx.InsertCoinEntry(ctx, &domain.CoinEntry{
		UserID: userID,
		Delta:  amount.Neg(),
		Reason: reason,
		Ref:    ref,
	})
	if errors.Is(err, domain.ErrDuplicateEntry) {
		return user.CoinBalance, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("record debit: %w", err)
	}

	newBalance, err := tx.AdjustUserBalance(ctx, userID, amount.Neg())
	if err != nil {
		return decimal.Zero, fmt.Errorf("apply debit: %w", err)
	}
	return newBalance, nil
}

// Balance returns the cached balance projection.
func Balance(ctx context.Context, tx storage.Tx, userID int64) (decimal.Decimal, error) {
	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.CoinBalance, nil
}
