package services

import "time"

const (
	KeyWallet           = "wallet:%d"
	KeyWagerResult      = "wager:result:%s"
	KeyWagerClaim       = "wager:claim:%s"
	KeyTransaction      = "transaction:%s"
	KeyUserTransactions = "user:%d:transactions"
	KeyRateLimit        = "ratelimit:%d:%s"

	// Claims are short-lived: a wager settles within the request or not at
	// all, so a stale claim only needs to outlive the slowest settlement.
	TTLWagerClaim = 30 * time.Second

	// Audit records are kept; only the per-user index is bounded.
	MaxUserTransactions = 500

	DefaultRateLimitWagers = 30 // max wagers per user per minute
)
