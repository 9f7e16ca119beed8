package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseJWT(t *testing.T) {
	tok, err := SignJWT("s3cret", "abc", "worker", 60)
	require.NoError(t, err)

	parsed, err := ParseJWT("s3cret", tok)
	require.NoError(t, err)
	claims := parsed.Claims.(*Claims)
	assert.Equal(t, "abc", claims.UserID)
	assert.Equal(t, "worker", claims.Role)
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	tok, err := SignJWT("s3cret", "abc", "user", 60)
	require.NoError(t, err)

	_, err = ParseJWT("other", tok)
	assert.Error(t, err)
}

func TestParseJWTRejectsExpired(t *testing.T) {
	tok, err := SignJWT("s3cret", "abc", "user", -1)
	require.NoError(t, err)

	_, err = ParseJWT("s3cret", tok)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}
