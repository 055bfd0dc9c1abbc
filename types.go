package auth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Authenticator holds the credential lifecycle operations
type Authenticator interface {
	Register(ctx context.Context, payload RegisterPayload) error
	Login(ctx context.Context, email, password string, rememberMe bool) (*IssuedToken, error)
	RefreshToken(ctx context.Context, accessToken, refreshToken string) (*IssuedToken, error)
	RevokeToken(ctx context.Context, username string) (bool, error)
}

// RegisterPayload carries the attributes needed to create an account.
type RegisterPayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Phone     string `json:"phone_number"`
	Password  string `json:"password"`
}

// LoginPayload is what HTTP adapters hand the Auther
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
	GetExtendedSession() bool
}

// CredentialStore is the only persistence contract the core depends on. The
// store owns the password hash and must serialize Persist per account so
// concurrent login attempts cannot under-count toward the lockout threshold.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	VerifyPassword(user *User, plaintext string) bool
	CreateAccount(ctx context.Context, user *User, plaintext string) error
	AssignRole(ctx context.Context, user *User, role UserRole) error
	Persist(ctx context.Context, user *User) error
}

// TokenCodec issues and verifies bearer credentials.
type TokenCodec interface {
	Issue(ctx context.Context, user *User, extendedExpiry bool) (*IssuedToken, error)
	Validate(tokenString string) (*JWTClaims, error)
	VerifyExpired(tokenString string) (*JWTClaims, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetIssuer() string
	GetAudience() []string
	GetTokenExpiryMinutes() int
	GetExtendedTokenExpiryMinutes() int
	GetRefreshTokenExpiryDays() int
	GetMaxLoginAttempts() int
	GetBlockDurationMinutes() int
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
