package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!pass")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "s3cret!pass", hash)

	require.NoError(t, ComparePasswordAndHash("s3cret!pass", hash))
}

func TestHashPassword_EmptyRejected(t *testing.T) {
	_, err := HashPassword("")
	require.Error(t, err)
	assert.True(t, hasTextCode(err, TextCodeEmptyPassword))
}

func TestComparePasswordAndHash_Mismatch(t *testing.T) {
	hash, err := HashPassword("s3cret!pass")
	require.NoError(t, err)

	err = ComparePasswordAndHash("wrong", hash)
	require.Error(t, err)
	assert.True(t, IsInvalidCredentials(err))
}

func TestComparePasswordAndHash_GarbageHash(t *testing.T) {
	err := ComparePasswordAndHash("s3cret!pass", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.False(t, IsInvalidCredentials(err))
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	first, err := HashPassword("s3cret!pass")
	require.NoError(t, err)
	second, err := HashPassword("s3cret!pass")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
