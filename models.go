package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default role assigned at registration
	RoleUser UserRole = "user"
	// RoleManager has elevated access
	RoleManager UserRole = "manager"
	// RoleAdmin has full system access
	RoleAdmin UserRole = "admin"
)

// User is the account model. The lockout counters and refresh token columns
// are the security state mutated by the Auther; everything else is identity.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName    string    `bun:"first_name" json:"first_name,omitempty"`
	LastName     string    `bun:"last_name" json:"last_name,omitempty"`
	Username     string    `bun:"username,notnull,unique" json:"username,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone        string    `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash string    `bun:"password_hash" json:"-"`

	LoginFailedCount   int        `bun:"login_failed_count" json:"login_failed_count,omitempty"`
	IsBlocked          bool       `bun:"is_blocked" json:"is_blocked,omitempty"`
	BlockedUntil       *time.Time `bun:"blocked_until,nullzero" json:"blocked_until,omitempty"`
	LastLoginDate      *time.Time `bun:"last_login_date,nullzero" json:"last_login_date,omitempty"`
	RefreshToken       *string    `bun:"refresh_token,nullzero" json:"-"`
	RefreshTokenExpiry *time.Time `bun:"refresh_token_expiry,nullzero" json:"-"`

	// Version guards the security columns against concurrent read-modify-write
	// cycles. Persist bumps it and refuses to apply over a stale read.
	Version int64 `bun:"version,notnull,default:0" json:"-"`

	Roles  []*RoleAssignment `bun:"rel:has-many,join:id=user_id" json:"roles,omitempty"`
	Claims []*UserClaim      `bun:"rel:has-many,join:id=user_id" json:"claims,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// RoleAssignment maps a user to one role name.
type RoleAssignment struct {
	bun.BaseModel `bun:"table:user_roles,alias:url"`

	ID     uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Role   UserRole  `bun:"role,notnull" json:"role,omitempty"`
}

// UserClaim is one (type, value) pair attached to a user. A user may carry
// the same claim type more than once.
type UserClaim struct {
	bun.BaseModel `bun:"table:user_claims,alias:ucl"`

	ID        uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	ClaimType string    `bun:"claim_type,notnull" json:"claim_type,omitempty"`
	Value     string    `bun:"claim_value,notnull" json:"claim_value,omitempty"`
}

// ClaimPair is the flat (type, value) shape claims travel in outside the
// persistence layer.
type ClaimPair struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// RoleNames returns the assigned role names in assignment order.
func (u *User) RoleNames() []string {
	if u == nil || len(u.Roles) == 0 {
		return nil
	}

	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r != nil {
			names = append(names, r.Role)
		}
	}
	return names
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role UserRole) bool {
	for _, name := range u.RoleNames() {
		if name == role {
			return true
		}
	}
	return false
}

// ClaimPairs returns the user's custom claims as flat pairs.
func (u *User) ClaimPairs() []ClaimPair {
	if u == nil || len(u.Claims) == 0 {
		return nil
	}

	pairs := make([]ClaimPair, 0, len(u.Claims))
	for _, c := range u.Claims {
		if c != nil {
			pairs = append(pairs, ClaimPair{Type: c.ClaimType, Value: c.Value})
		}
	}
	return pairs
}

// AddClaim appends a claim pair without touching persistence.
func (u *User) AddClaim(claimType, value string) *User {
	u.Claims = append(u.Claims, &UserClaim{
		UserID:    u.ID,
		ClaimType: claimType,
		Value:     value,
	})
	return u
}

// HasRefreshToken reports whether both refresh fields are set. They are set
// and cleared together.
func (u *User) HasRefreshToken() bool {
	return u != nil && u.RefreshToken != nil && u.RefreshTokenExpiry != nil
}

// ClearRefreshToken drops both refresh fields.
func (u *User) ClearRefreshToken() {
	u.RefreshToken = nil
	u.RefreshTokenExpiry = nil
}

// SetRefreshToken mirrors an issued refresh token onto the account.
func (u *User) SetRefreshToken(token string, expiry time.Time) {
	u.RefreshToken = &token
	u.RefreshTokenExpiry = &expiry
}
