package auth

import (
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced on structured errors so API layers and tests can
// branch on kind instead of matching message strings.
const (
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	TextCodeDuplicateUsername = "DUPLICATE_USERNAME"
	TextCodeAccountBlocked    = "ACCOUNT_BLOCKED"
	TextCodeInvalidToken      = "INVALID_TOKEN"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	TextCodeConcurrentUpdate  = "CONCURRENT_ACCOUNT_UPDATE"
	TextCodeEmptyPassword     = "EMPTY_PASSWORD"
)

// Metadata keys attached to blocked-account errors.
const (
	metaRemaining        = "remaining"
	metaRemainingMinutes = "remaining_minutes"
)

// ErrIdentityNotFound is returned when an account lookup comes back empty.
// Login paths must never surface this to callers, they report
// ErrInvalidCredentials instead so account existence does not leak.
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound)

// ErrInvalidCredentials covers both unknown email and wrong password with a
// single message.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrDuplicateEmail is returned when registering an email that is taken.
var ErrDuplicateEmail = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrDuplicateUsername is returned when registering a username that is taken.
var ErrDuplicateUsername = goerrors.New("username is already taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateUsername).
	WithCode(goerrors.CodeConflict)

// ErrInvalidToken covers every refresh failure mode: bad signature, wrong
// algorithm, unknown account, mismatched or expired refresh token.
var ErrInvalidToken = goerrors.New("invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken)

// ErrTokenExpired is returned by full validation when the token is past exp.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is returned when a token cannot be parsed at all.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenMalformed)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// NewAccountBlockedError builds the blocked-account error carrying the
// remaining wait so the caller learns it in the same response.
func NewAccountBlockedError(remaining time.Duration) *goerrors.Error {
	if remaining < 0 {
		remaining = 0
	}

	minutes := int(remaining.Round(time.Minute) / time.Minute)

	return goerrors.New("account is temporarily blocked", goerrors.CategoryRateLimit).
		WithTextCode(TextCodeAccountBlocked).
		WithMetadata(map[string]any{
			metaRemaining:        remaining,
			metaRemainingMinutes: minutes,
		})
}

// NewStoreUnavailableError wraps a transient persistence failure. These are
// retryable faults, never business outcomes.
func NewStoreUnavailableError(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "credential store unavailable").
		WithTextCode(TextCodeStoreUnavailable)
}

// NewConcurrentUpdateError reports a version-check failure on the account's
// security columns. Callers re-read and replay.
func NewConcurrentUpdateError(userID string) *goerrors.Error {
	return goerrors.New("account was updated concurrently", goerrors.CategoryConflict).
		WithTextCode(TextCodeConcurrentUpdate).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"user_id": userID})
}

// IsConcurrentUpdate reports whether err is a stale-write rejection.
func IsConcurrentUpdate(err error) bool {
	return hasTextCode(err, TextCodeConcurrentUpdate)
}

// IsAccountBlocked reports whether err is the blocked-account kind.
func IsAccountBlocked(err error) bool {
	return hasTextCode(err, TextCodeAccountBlocked)
}

// BlockedRemaining extracts the remaining block duration from a
// blocked-account error.
func BlockedRemaining(err error) (time.Duration, bool) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return 0, false
	}

	remaining, ok := richErr.Metadata[metaRemaining].(time.Duration)
	return remaining, ok
}

// IsInvalidCredentials reports whether err is the invalid-credential kind.
func IsInvalidCredentials(err error) bool {
	return hasTextCode(err, TextCodeInvalidCreds)
}

// IsInvalidToken reports whether err is the invalid-token kind.
func IsInvalidToken(err error) bool {
	return hasTextCode(err, TextCodeInvalidToken)
}

// IsStoreUnavailable reports whether err is a transient store failure.
func IsStoreUnavailable(err error) bool {
	return hasTextCode(err, TextCodeStoreUnavailable)
}

func hasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, TextCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
