package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CoinReason string

const (
	ReasonOrderDebit  CoinReason = "order_debit"
	ReasonTaskCredit  CoinReason = "task_credit"
	ReasonRefund      CoinReason = "refund"
	ReasonAdminAdjust CoinReason = "admin_adjust"
)

// CoinEntry is one immutable coin movement. (Reason, Ref) is unique: a
// retried write with the same pair is a no-op.
type CoinEntry struct {
	ID        int64
	UserID    int64
	Delta     decimal.Decimal
	Reason    CoinReason
	Ref       string
	CreatedAt time.Time
}
