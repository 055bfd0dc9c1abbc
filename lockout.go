package auth

import "time"

// LockoutDecision is the outcome of evaluating a login attempt against the
// account's lockout state.
type LockoutDecision struct {
	Allowed bool
	// Remaining is how long the block still holds. Only set when !Allowed.
	Remaining time.Duration
	// Expired signals the block lapsed during this evaluation: the caller
	// must persist the cleared state regardless of the attempt's outcome.
	Expired bool
}

// EvaluateLoginAttempt decides whether a login attempt may proceed. When a
// block has lapsed it clears IsBlocked, BlockedUntil, and the failure counter
// on the account in place; the mutation still has to be persisted by the
// caller.
func EvaluateLoginAttempt(user *User, now time.Time) LockoutDecision {
	if user == nil || !user.IsBlocked {
		return LockoutDecision{Allowed: true}
	}

	if user.BlockedUntil != nil && user.BlockedUntil.After(now) {
		return LockoutDecision{
			Allowed:   false,
			Remaining: user.BlockedUntil.Sub(now),
		}
	}

	// Block expired: one attempt, whatever its outcome, is enough to reset.
	user.IsBlocked = false
	user.BlockedUntil = nil
	user.LoginFailedCount = 0

	return LockoutDecision{Allowed: true, Expired: true}
}

// RecordFailure counts a failed password check. Crossing the threshold
// blocks the account immediately, so the attempt that trips the limit is
// itself reported as blocked rather than as a plain credential failure.
// Returns true when this failure caused the block.
func RecordFailure(user *User, cfg Config, now time.Time) bool {
	user.LoginFailedCount++

	if user.LoginFailedCount < cfg.GetMaxLoginAttempts() {
		return false
	}

	until := now.Add(BlockDuration(cfg))
	user.IsBlocked = true
	user.BlockedUntil = &until

	return true
}

// RecordSuccess resets the lockout state and stamps the login time.
func RecordSuccess(user *User, now time.Time) {
	user.LoginFailedCount = 0
	user.IsBlocked = false
	user.BlockedUntil = nil
	user.LastLoginDate = &now
}

// BlockDuration is the configured lockout window.
func BlockDuration(cfg Config) time.Duration {
	return time.Duration(cfg.GetBlockDurationMinutes()) * time.Minute
}
