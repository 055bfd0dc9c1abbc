package auth

import (
	"os"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// Settings is the process-wide auth configuration. It is loaded once at
// startup and treated as read-only for the lifetime of the process.
type Settings struct {
	SigningKey                 string
	Issuer                     string
	Audience                   []string
	TokenExpiryMinutes         int
	ExtendedTokenExpiryMinutes int
	RefreshTokenExpiryDays     int
	MaxLoginAttempts           int
	BlockDurationMinutes       int
}

var _ Config = Settings{}

// Defaults mirror a short-lived access token with a day-long remember-me
// window and a three-strike lockout.
const (
	DefaultTokenExpiryMinutes         = 60
	DefaultExtendedTokenExpiryMinutes = 1440
	DefaultRefreshTokenExpiryDays     = 7
	DefaultMaxLoginAttempts           = 3
	DefaultBlockDurationMinutes       = 15
)

func (s Settings) GetSigningKey() string    { return s.SigningKey }
func (s Settings) GetSigningMethod() string { return "HS256" }
func (s Settings) GetIssuer() string        { return s.Issuer }
func (s Settings) GetAudience() []string    { return s.Audience }

func (s Settings) GetTokenExpiryMinutes() int {
	if s.TokenExpiryMinutes <= 0 {
		return DefaultTokenExpiryMinutes
	}
	return s.TokenExpiryMinutes
}

func (s Settings) GetExtendedTokenExpiryMinutes() int {
	if s.ExtendedTokenExpiryMinutes <= 0 {
		return DefaultExtendedTokenExpiryMinutes
	}
	return s.ExtendedTokenExpiryMinutes
}

func (s Settings) GetRefreshTokenExpiryDays() int {
	if s.RefreshTokenExpiryDays <= 0 {
		return DefaultRefreshTokenExpiryDays
	}
	return s.RefreshTokenExpiryDays
}

func (s Settings) GetMaxLoginAttempts() int {
	if s.MaxLoginAttempts <= 0 {
		return DefaultMaxLoginAttempts
	}
	return s.MaxLoginAttempts
}

func (s Settings) GetBlockDurationMinutes() int {
	if s.BlockDurationMinutes <= 0 {
		return DefaultBlockDurationMinutes
	}
	return s.BlockDurationMinutes
}

// LoadSettings reads settings from the environment, loading .env files first
// when present. AUTH_SIGNING_KEY is the only required value.
func LoadSettings(files ...string) (Settings, error) {
	_ = godotenv.Load(files...)

	key := os.Getenv("AUTH_SIGNING_KEY")
	if key == "" {
		return Settings{}, goerrors.New("AUTH_SIGNING_KEY is required", goerrors.CategoryValidation)
	}

	s := Settings{
		SigningKey:                 key,
		Issuer:                     os.Getenv("AUTH_ISSUER"),
		TokenExpiryMinutes:         envInt("AUTH_TOKEN_EXPIRY_MINUTES", DefaultTokenExpiryMinutes),
		ExtendedTokenExpiryMinutes: envInt("AUTH_EXTENDED_TOKEN_EXPIRY_MINUTES", DefaultExtendedTokenExpiryMinutes),
		RefreshTokenExpiryDays:     envInt("AUTH_REFRESH_TOKEN_EXPIRY_DAYS", DefaultRefreshTokenExpiryDays),
		MaxLoginAttempts:           envInt("AUTH_MAX_LOGIN_ATTEMPTS", DefaultMaxLoginAttempts),
		BlockDurationMinutes:       envInt("AUTH_BLOCK_DURATION_MINUTES", DefaultBlockDurationMinutes),
	}

	if aud := os.Getenv("AUTH_AUDIENCE"); aud != "" {
		for _, a := range strings.Split(aud, ",") {
			if a = strings.TrimSpace(a); a != "" {
				s.Audience = append(s.Audience, a)
			}
		}
	}

	return s, nil
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}

	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}
