package config

import "time"

const (
	// Claim retries inside a single TakeTask before reporting no tasks.
	ClaimAttempts = 3

	// Transaction retries on contention / transient storage errors.
	TxAttempts = 3

	// HTTP server timeouts
	ReadTimeout     = 60 * time.Second
	WriteTimeout    = 60 * time.Second
	ShutdownTimeout = 30 * time.Second

	// Recent ledger entries returned by the balance endpoint.
	BalanceHistoryLimit = 20
)
