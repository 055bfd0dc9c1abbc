package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is what callers get back from token verification.
type AuthClaims interface {
	Subject() string
	Username() string
	Roles() []string
	HasRole(role string) bool
	ClaimValues(claimType string) []string
	TokenID() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete claim set carried by issued tokens. Custom
// claims are grouped by type because a user may hold the same claim type
// more than once.
type JWTClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string              `json:"username,omitempty"`
	UserRoles         []string            `json:"roles,omitempty"`
	Custom            map[string][]string `json:"claims,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Username returns the username claim
func (c *JWTClaims) Username() string {
	return c.PreferredUsername
}

// Roles returns the role claims, one entry per assigned role.
func (c *JWTClaims) Roles() []string {
	return c.UserRoles
}

// HasRole checks if the token carries a specific role
func (c *JWTClaims) HasRole(role string) bool {
	for _, r := range c.UserRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ClaimValues returns every value carried for a claim type.
func (c *JWTClaims) ClaimValues(claimType string) []string {
	if c.Custom == nil {
		return nil
	}
	return c.Custom[claimType]
}

// TokenID returns the jti claim
func (c *JWTClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// claimSetFromPairs groups flat pairs by type, keeping duplicates.
func claimSetFromPairs(pairs []ClaimPair) map[string][]string {
	if len(pairs) == 0 {
		return nil
	}

	set := make(map[string][]string, len(pairs))
	for _, p := range pairs {
		set[p.Type] = append(set[p.Type], p.Value)
	}
	return set
}
