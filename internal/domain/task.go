package domain

import "time"

type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskAssigned TaskStatus = "assigned"
	TaskVerified TaskStatus = "verified"
	TaskRejected TaskStatus = "rejected"
)

// RejectKind records why a task ended in the rejected state.
type RejectKind string

const (
	RejectNone RejectKind = ""
	// RejectWorkerFault: the worker did not actually perform the action.
	// A replacement task is created so target_count is preserved.
	RejectWorkerFault RejectKind = "worker_fault"
	// RejectTargetGone: the target disappeared; the owner is refunded.
	RejectTargetGone RejectKind = "target_gone"
	// RejectCancelled: the order was cancelled; the owner is refunded.
	RejectCancelled RejectKind = "cancelled"
)

// Task is one unit of work inside an order, assigned to one worker at a time.
type Task struct {
	ID               int64
	OrderID          int64
	Status           TaskStatus
	AssignedUserID   *int64
	AssignedAt       *time.Time
	ExpiresAt        *time.Time
	CompletedAt      *time.Time
	ValidationRef    *string
	RejectKind       RejectKind
	ReplacedByTaskID *int64
	AttemptCount     int
	CreatedAt        time.Time
}
