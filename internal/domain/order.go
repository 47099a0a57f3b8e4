package domain

import "time"

type OrderKind string

const (
	KindLike    OrderKind = "like"
	KindFollow  OrderKind = "follow"
	KindComment OrderKind = "comment"
)

func (k OrderKind) Valid() bool {
	switch k {
	case KindLike, KindFollow, KindComment:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderActive    OrderStatus = "active"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is a purchased request for TargetCount interactions on one target.
// RemainingCount counts interactions not yet resolved (verified or refunded);
// it only ever decreases.
type Order struct {
	ID             int64
	OwnerUserID    int64
	Kind           OrderKind
	TargetURL      string
	RequiredText   string // comment orders only
	TargetCount    int
	RemainingCount int
	Status         OrderStatus
	// CancelRequested marks an active order whose owner asked for
	// cancellation while tasks were still assigned. Such tasks run to
	// their natural conclusion; the order finalizes afterwards.
	CancelRequested bool
	CreatedAt       time.Time
}
