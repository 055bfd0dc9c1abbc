package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// persistRetries bounds how often an operation is replayed when the store
// reports a concurrent update on the same account.
const persistRetries = 3

// Auther coordinates the credential store, the lockout policy, and the token
// codec. It keeps no state between calls; every mutation lives on the
// persisted account.
type Auther struct {
	store        CredentialStore
	codec        TokenCodec
	cfg          Config
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store CredentialStore, cfg Config) *Auther {
	return &Auther{
		store:        store,
		codec:        NewTokenService(cfg, defLogger{}),
		cfg:          cfg,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithTokenCodec swaps the codec used to issue and verify tokens.
func (s *Auther) WithTokenCodec(codec TokenCodec) *Auther {
	if codec != nil {
		s.codec = codec
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *Auther) WithClock(clock func() time.Time) *Auther {
	if clock != nil {
		s.now = clock
	}
	return s
}

// TokenCodec returns the codec used by this Authenticator
func (s *Auther) TokenCodec() TokenCodec {
	return s.codec
}

// Register creates a new account with the default role. Registration does
// not log the user in, no token is issued.
func (s *Auther) Register(ctx context.Context, payload RegisterPayload) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during registration")
	}

	if _, err := s.store.FindByEmail(ctx, payload.Email); err == nil {
		return ErrDuplicateEmail
	} else if !goerrors.IsNotFound(err) {
		return NewStoreUnavailableError(err)
	}

	if _, err := s.store.FindByUsername(ctx, payload.Username); err == nil {
		return ErrDuplicateUsername
	} else if !goerrors.IsNotFound(err) {
		return NewStoreUnavailableError(err)
	}

	user := &User{
		ID:        uuid.New(),
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Username:  payload.Username,
		Phone:     payload.Phone,
	}

	if err := s.store.CreateAccount(ctx, user, payload.Password); err != nil {
		s.logger.Error("Register create account error: %v", err)
		return NewStoreUnavailableError(err)
	}

	if err := s.store.AssignRole(ctx, user, RoleUser); err != nil {
		s.logger.Error("Register assign role error: %v", err)
		return NewStoreUnavailableError(err)
	}

	s.logger.Info("registered user %s", user.Username)
	s.emitAuthEvent(ctx, ActivityEventRegistration, user.ID.String(), map[string]any{
		"username": user.Username,
	})
	return nil
}

// Login authenticates by email and password. The lockout policy runs before
// the password check: a blocked account fails without the password ever
// being compared. rememberMe selects the extended access token TTL.
func (s *Auther) Login(ctx context.Context, email, password string, rememberMe bool) (*IssuedToken, error) {
	var token *IssuedToken
	err := s.withConflictRetry(func() error {
		var err error
		token, err = s.login(ctx, email, password, rememberMe)
		return err
	})
	return token, err
}

func (s *Auther) login(ctx context.Context, email, password string, rememberMe bool) (*IssuedToken, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			// Same kind and message as a wrong password.
			return nil, ErrInvalidCredentials
		}
		return nil, NewStoreUnavailableError(err)
	}

	now := s.now()

	decision := EvaluateLoginAttempt(user, now)
	if !decision.Allowed {
		s.emitAuthEvent(ctx, ActivityEventLoginBlocked, user.ID.String(), map[string]any{
			"remaining": decision.Remaining.String(),
		})
		return nil, NewAccountBlockedError(decision.Remaining)
	}

	if !s.store.VerifyPassword(user, password) {
		crossed := RecordFailure(user, s.cfg, now)

		if err := s.store.Persist(ctx, user); err != nil {
			return nil, s.persistError(err)
		}

		if crossed {
			s.logger.Warn("account blocked after repeated failures: %s", email)
			s.emitAuthEvent(ctx, ActivityEventLoginBlocked, user.ID.String(), map[string]any{
				"failed_count": user.LoginFailedCount,
			})
			return nil, NewAccountBlockedError(BlockDuration(s.cfg))
		}

		s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{
			"failed_count": user.LoginFailedCount,
		})
		return nil, ErrInvalidCredentials
	}

	RecordSuccess(user, now)

	token, err := s.codec.Issue(ctx, user, rememberMe)
	if err != nil {
		s.logger.Error("Login token issuance error: %v", err)
		return nil, err
	}

	// One persist covers the lockout reset and the refresh token mirror, so
	// a cancelled request leaves no partial state behind.
	user.SetRefreshToken(token.RefreshToken, token.RefreshExpiresAt)
	if err := s.store.Persist(ctx, user); err != nil {
		return nil, s.persistError(err)
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, user.ID.String(), nil)

	return token, nil
}

// RefreshToken exchanges an expired access token plus its refresh token for
// a new pair. The stored refresh token is overwritten on success, so each
// refresh token works exactly once.
func (s *Auther) RefreshToken(ctx context.Context, accessToken, refreshToken string) (*IssuedToken, error) {
	var token *IssuedToken
	err := s.withConflictRetry(func() error {
		var err error
		token, err = s.refreshToken(ctx, accessToken, refreshToken)
		return err
	})
	return token, err
}

func (s *Auther) refreshToken(ctx context.Context, accessToken, refreshToken string) (*IssuedToken, error) {
	claims, err := s.codec.VerifyExpired(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	username := claims.Username()
	if username == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, NewStoreUnavailableError(err)
	}

	if !user.HasRefreshToken() ||
		*user.RefreshToken != refreshToken ||
		!user.RefreshTokenExpiry.After(s.now()) {
		return nil, ErrInvalidToken
	}

	token, err := s.codec.Issue(ctx, user, false)
	if err != nil {
		s.logger.Error("RefreshToken issuance error: %v", err)
		return nil, err
	}

	user.SetRefreshToken(token.RefreshToken, token.RefreshExpiresAt)
	if err := s.store.Persist(ctx, user); err != nil {
		return nil, s.persistError(err)
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, user.ID.String(), nil)

	return token, nil
}

// RevokeToken clears the account's refresh token. A missing account reports
// false the same way a revoked one reports true, nothing about existence
// leaks through this call.
func (s *Auther) RevokeToken(ctx context.Context, username string) (bool, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return false, nil
		}
		return false, NewStoreUnavailableError(err)
	}

	user.ClearRefreshToken()
	if err := s.store.Persist(ctx, user); err != nil {
		return false, s.persistError(err)
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRevoked, user.ID.String(), nil)

	return true, nil
}

// withConflictRetry replays the whole read-modify-write cycle when the store
// rejects a stale write. Re-reading keeps counters accurate under parallel
// attempts against the same account.
func (s *Auther) withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < persistRetries; attempt++ {
		if err = fn(); !IsConcurrentUpdate(err) {
			return err
		}
		s.logger.Debug("retrying after concurrent account update, attempt %d", attempt+1)
	}
	return err
}

func (s *Auther) persistError(err error) error {
	if IsConcurrentUpdate(err) {
		return err
	}
	return NewStoreUnavailableError(err)
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)

	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{ID: userID, Type: "user"},
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if userID == "" {
		event.Actor = ActorRef{Type: "unknown"}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
