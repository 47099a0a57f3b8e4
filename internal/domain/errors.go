package domain

import "errors"

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidTarget      = errors.New("invalid target")
	ErrBanned             = errors.New("user is banned")
	ErrHasActiveTask      = errors.New("user already has an active task")
	ErrNoTasksAvailable   = errors.New("no tasks available")
	ErrNotYours           = errors.New("task is assigned to another user")
	ErrWrongState         = errors.New("wrong state for this operation")
	ErrExpired            = errors.New("assignment expired")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrNotOwner           = errors.New("caller does not own this order")
	ErrDuplicateEntry     = errors.New("duplicate ledger entry")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUserNotFound       = errors.New("user not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrTaskNotFound       = errors.New("task not found")
)
