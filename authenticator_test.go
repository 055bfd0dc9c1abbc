package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuther(store *memStore) (*Auther, *fixedClock) {
	clock := newFixedClock(time.Now().Truncate(time.Second))
	cfg := testConfig()

	codec := NewTokenService(cfg, nil).WithClock(clock.Now)
	auther := NewAuthenticator(store, cfg).
		WithTokenCodec(codec).
		WithClock(clock.Now)

	return auther, clock
}

func TestRegister_CreatesAccountWithDefaultRole(t *testing.T) {
	store := newMemStore()
	auther, _ := newTestAuther(store)

	err := auther.Register(context.Background(), RegisterPayload{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Username:  "ada",
		Password:  "s3cret!pass",
	})
	require.NoError(t, err)

	user := store.stored("ada@example.com")
	require.NotNil(t, user)
	assert.Equal(t, "ada", user.Username)
	assert.True(t, user.HasRole(RoleUser))
	assert.False(t, user.IsBlocked)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, _ := newTestAuther(store)

	err := auther.Register(context.Background(), RegisterPayload{
		Email:    "ada@example.com",
		Username: "different",
		Password: "s3cret!pass",
	})

	require.Error(t, err)
	assert.True(t, hasTextCode(err, TextCodeDuplicateEmail))
}

func TestRegister_DuplicateUsername(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, _ := newTestAuther(store)

	err := auther.Register(context.Background(), RegisterPayload{
		Email:    "different@example.com",
		Username: "ada",
		Password: "s3cret!pass",
	})

	require.Error(t, err)
	assert.True(t, hasTextCode(err, TextCodeDuplicateUsername))
}

func TestLogin_Success(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser, RoleAdmin)
	auther, clock := newTestAuther(store)

	token, err := auther.Login(context.Background(), "ada@example.com", "s3cret!pass", false)
	require.NoError(t, err)
	require.NotNil(t, token)

	assert.NotEmpty(t, token.AccessToken)
	assert.NotEmpty(t, token.RefreshToken)
	assert.ElementsMatch(t, []string{RoleUser, RoleAdmin}, token.Roles)

	stored := store.stored("ada@example.com")
	require.True(t, stored.HasRefreshToken())
	assert.Equal(t, token.RefreshToken, *stored.RefreshToken)
	require.NotNil(t, stored.LastLoginDate)
	assert.Equal(t, clock.Now(), *stored.LastLoginDate)
}

func TestLogin_UnknownEmailLooksLikeWrongPassword(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, _ := newTestAuther(store)

	_, unknownErr := auther.Login(context.Background(), "nobody@example.com", "whatever", false)
	_, wrongErr := auther.Login(context.Background(), "ada@example.com", "wrong", false)

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.True(t, IsInvalidCredentials(unknownErr))
	assert.True(t, IsInvalidCredentials(wrongErr))
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLogin_ThirdFailureBlocksAccount(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, _ := newTestAuther(store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := auther.Login(ctx, "ada@example.com", "wrong", false)
		require.Error(t, err)
		assert.True(t, IsInvalidCredentials(err))
	}

	// the attempt that trips the limit reports blocked, not bad credentials
	_, err := auther.Login(ctx, "ada@example.com", "wrong", false)
	require.Error(t, err)
	assert.True(t, IsAccountBlocked(err))

	remaining, ok := BlockedRemaining(err)
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, remaining)

	stored := store.stored("ada@example.com")
	assert.True(t, stored.IsBlocked)
	assert.Equal(t, 3, stored.LoginFailedCount)
}

func TestLogin_BlockedBeforePasswordCheck(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, clock := newTestAuther(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		auther.Login(ctx, "ada@example.com", "wrong", false)
	}

	clock.Advance(5 * time.Minute)

	// the correct password does not get through while the block holds
	_, err := auther.Login(ctx, "ada@example.com", "s3cret!pass", false)
	require.Error(t, err)
	assert.True(t, IsAccountBlocked(err))

	remaining, ok := BlockedRemaining(err)
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, remaining)

	// failure counter did not move while blocked
	assert.Equal(t, 3, store.stored("ada@example.com").LoginFailedCount)
}

func TestLogin_BlockExpiresAndCorrectPasswordSucceeds(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, clock := newTestAuther(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		auther.Login(ctx, "ada@example.com", "wrong", false)
	}

	clock.Advance(16 * time.Minute)

	token, err := auther.Login(ctx, "ada@example.com", "s3cret!pass", false)
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)

	stored := store.stored("ada@example.com")
	assert.False(t, stored.IsBlocked)
	assert.Nil(t, stored.BlockedUntil)
	assert.Equal(t, 0, stored.LoginFailedCount)
}

func TestLogin_ExpiredBlockResetsFailureCounter(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, clock := newTestAuther(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		auther.Login(ctx, "ada@example.com", "wrong", false)
	}

	clock.Advance(16 * time.Minute)

	// first attempt after expiry fails the password check, but the counter
	// restarts from zero rather than continuing at three
	_, err := auther.Login(ctx, "ada@example.com", "wrong", false)
	require.Error(t, err)
	assert.True(t, IsInvalidCredentials(err))

	stored := store.stored("ada@example.com")
	assert.False(t, stored.IsBlocked)
	assert.Equal(t, 1, stored.LoginFailedCount)
}

func TestLogin_RetriesOnConcurrentUpdate(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	store.failPersists = 1

	auther, _ := newTestAuther(store)

	token, err := auther.Login(context.Background(), "ada@example.com", "s3cret!pass", false)
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.GreaterOrEqual(t, store.persistCalls, 2)
}

func TestLogin_GivesUpAfterRepeatedConflicts(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	store.failPersists = 10

	auther, _ := newTestAuther(store)

	_, err := auther.Login(context.Background(), "ada@example.com", "s3cret!pass", false)
	require.Error(t, err)
	assert.True(t, IsConcurrentUpdate(err))
}

func TestRefreshToken_RotatesStoredToken(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, clock := newTestAuther(store)
	ctx := context.Background()

	issued, err := auther.Login(ctx, "ada@example.com", "s3cret!pass", false)
	require.NoError(t, err)

	clock.Advance(45 * time.Minute) // access token (30m) is now expired

	refreshed, err := auther.RefreshToken(ctx, issued.AccessToken, issued.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, refreshed)

	assert.NotEqual(t, issued.AccessToken, refreshed.AccessToken)
	assert.NotEqual(t, issued.RefreshToken, refreshed.RefreshToken)

	stored := store.stored("ada@example.com")
	require.True(t, stored.HasRefreshToken())
	assert.Equal(t, refreshed.RefreshToken, *stored.RefreshToken)
}

func TestRefreshToken_IsSingleUse(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, _ := newTestAuther(store)
	ctx := context.Background()

	issued, err := auther.Login(ctx, "ada@example.com", "s3cret!pass", false)
	require.NoError(t, err)

	_, err = auther.RefreshToken(ctx, issued.AccessToken, issued.RefreshToken)
	require.NoError(t, err)

	// replaying the consumed refresh token fails
	_, err = auther.RefreshToken(ctx, issued.AccessToken, issued.RefreshToken)
	require.Error(t, err)
	assert.True(t, IsInvalidToken(err))
}

func TestRefreshToken_RejectsMismatchedToken(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, _ := newTestAuther(store)
	ctx := context.Background()

	issued, err := auther.Login(ctx, "ada@example.com", "s3cret!pass", false)
	require.NoError(t, err)

	_, err = auther.RefreshToken(ctx, issued.AccessToken, "not-the-stored-token")
	require.Error(t, err)
	assert.True(t, IsInvalidToken(err))
}

func TestRefreshToken_RejectsExpiredRefreshToken(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, clock := newTestAuther(store)
	ctx := context.Background()

	issued, err := auther.Login(ctx, "ada@example.com", "s3cret!pass", false)
	require.NoError(t, err)

	clock.Advance(8 * 24 * time.Hour) // past the 7 day refresh window

	_, err = auther.RefreshToken(ctx, issued.AccessToken, issued.RefreshToken)
	require.Error(t, err)
	assert.True(t, IsInvalidToken(err))
}

func TestRefreshToken_RejectsGarbageAccessToken(t *testing.T) {
	store := newMemStore()
	auther, _ := newTestAuther(store)

	_, err := auther.RefreshToken(context.Background(), "garbage", "whatever")
	require.Error(t, err)
	assert.True(t, IsInvalidToken(err))
}

func TestRefreshToken_AfterRevocation(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, _ := newTestAuther(store)
	ctx := context.Background()

	issued, err := auther.Login(ctx, "ada@example.com", "s3cret!pass", false)
	require.NoError(t, err)

	revoked, err := auther.RevokeToken(ctx, "ada")
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = auther.RefreshToken(ctx, issued.AccessToken, issued.RefreshToken)
	require.Error(t, err)
	assert.True(t, IsInvalidToken(err))
}

func TestRevokeToken_UnknownUsernameReportsFalse(t *testing.T) {
	store := newMemStore()
	auther, _ := newTestAuther(store)

	revoked, err := auther.RevokeToken(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeToken_ClearsStoredToken(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	auther, _ := newTestAuther(store)
	ctx := context.Background()

	_, err := auther.Login(ctx, "ada@example.com", "s3cret!pass", false)
	require.NoError(t, err)
	require.True(t, store.stored("ada@example.com").HasRefreshToken())

	revoked, err := auther.RevokeToken(ctx, "ada")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.False(t, store.stored("ada@example.com").HasRefreshToken())
}

func TestAuther_EmitsActivityEvents(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ada@example.com", "ada", "s3cret!pass", RoleUser)
	sink := &recordingSink{}

	auther, _ := newTestAuther(store)
	auther.WithActivitySink(sink)
	ctx := context.Background()

	auther.Login(ctx, "ada@example.com", "wrong", false)
	issued, err := auther.Login(ctx, "ada@example.com", "s3cret!pass", false)
	require.NoError(t, err)
	_, err = auther.RefreshToken(ctx, issued.AccessToken, issued.RefreshToken)
	require.NoError(t, err)
	_, err = auther.RevokeToken(ctx, "ada")
	require.NoError(t, err)

	assert.Equal(t, []ActivityEventType{
		ActivityEventLoginFailure,
		ActivityEventLoginSuccess,
		ActivityEventTokenRefreshed,
		ActivityEventTokenRevoked,
	}, sink.types())
}
