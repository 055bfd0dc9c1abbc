package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// refreshTokenBytes is the entropy of generated refresh tokens: 32 bytes,
// 256 bits, base64 encoded.
const refreshTokenBytes = 32

// IssuedToken is the value returned to callers after login or refresh. The
// refresh half is mirrored onto the account by the Auther; nothing here is
// persisted as its own entity.
type IssuedToken struct {
	AccessToken      string              `json:"access_token"`
	RefreshToken     string              `json:"refresh_token"`
	ExpiresAt        time.Time           `json:"expiration"`
	RefreshExpiresAt time.Time           `json:"-"`
	Username         string              `json:"username"`
	Roles            []string            `json:"roles,omitempty"`
	Claims           map[string][]string `json:"claims,omitempty"`
}

// TokenServiceImpl implements the TokenCodec interface
type TokenServiceImpl struct {
	signingKey []byte
	cfg        Config
	logger     Logger
	decorator  ClaimsDecorator
	now        func() time.Time
}

// NewTokenService creates a new TokenCodec instance
func NewTokenService(cfg Config, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey: []byte(cfg.GetSigningKey()),
		cfg:        cfg,
		logger:     logger,
		decorator:  noopClaimsDecorator{},
		now:        time.Now,
	}
}

// WithClaimsDecorator configures a ClaimsDecorator for enriching issued
// tokens. Decorators may only touch the Custom claim map.
func (ts *TokenServiceImpl) WithClaimsDecorator(decorator ClaimsDecorator) *TokenServiceImpl {
	ts.decorator = normalizeClaimsDecorator(decorator)
	return ts
}

// WithClock injects a custom clock (useful for tests).
func (ts *TokenServiceImpl) WithClock(clock func() time.Time) *TokenServiceImpl {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// Issue builds and signs an access token for the user plus a fresh random
// refresh token. The claim set carries the subject, the username, a unique
// jti, one role claim per assigned role, and every custom claim verbatim.
// The TTL is the extended one when extendedExpiry is set.
func (ts *TokenServiceImpl) Issue(ctx context.Context, user *User, extendedExpiry bool) (*IssuedToken, error) {
	if user == nil {
		return nil, goerrors.New("user must not be nil", goerrors.CategoryInternal)
	}

	now := ts.now()

	minutes := ts.cfg.GetTokenExpiryMinutes()
	if extendedExpiry {
		minutes = ts.cfg.GetExtendedTokenExpiryMinutes()
	}
	expiresAt := now.Add(time.Duration(minutes) * time.Minute)

	var aud jwt.ClaimStrings
	if audience := ts.cfg.GetAudience(); len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	roles := user.RoleNames()
	custom := claimSetFromPairs(user.ClaimPairs())

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.cfg.GetIssuer(),
			Subject:   user.ID.String(),
			Audience:  aud,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		PreferredUsername: user.Username,
		UserRoles:         roles,
		Custom:            custom,
	}

	snapshot := captureImmutableClaims(claims)

	decorator := normalizeClaimsDecorator(ts.decorator)
	if err := decorator.Decorate(ctx, user, claims); err != nil {
		ts.logger.Error("claims decorator failed: %v", err)
		return nil, err
	}

	if err := snapshot.validate(claims); err != nil {
		ts.logger.Error("claims decorator mutated immutable claims: %v", err)
		return nil, err
	}

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return nil, err
	}

	custom = claims.Custom

	refreshToken, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshExpiry := now.Add(time.Duration(ts.cfg.GetRefreshTokenExpiryDays()) * 24 * time.Hour)

	return &IssuedToken{
		AccessToken:      signed,
		RefreshToken:     refreshToken,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: refreshExpiry,
		Username:         user.Username,
		Roles:            roles,
		Claims:           custom,
	}, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
// The signing algorithm is pinned to HS256.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and fully validates a token string: signature, pinned
// algorithm, expiry, and issuer/audience when configured.
func (ts *TokenServiceImpl) Validate(tokenString string) (*JWTClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if issuer := ts.cfg.GetIssuer(); issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(issuer))
	}
	if audience := ts.cfg.GetAudience(); len(audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, ts.keyFunc, parserOptions...)
	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode claims")
	return nil, ErrInvalidToken
}

// VerifyExpired checks the signature and the pinned algorithm but skips
// expiry, issuer, and audience validation. This path exists solely so the
// refresh flow can extract identity from an access token that has already
// expired; a tampered or foreign-signed token still fails.
func (ts *TokenServiceImpl) VerifyExpired(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&JWTClaims{},
		ts.keyFunc,
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (ts *TokenServiceImpl) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		ts.logger.Error("TokenService encountered unexpected signing method: %v", t.Header["alg"])
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return ts.signingKey, nil
}

// GenerateRefreshToken returns a cryptographically random, base64 encoded
// refresh token independent of any access token.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh token")
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
