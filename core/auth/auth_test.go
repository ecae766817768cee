package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", "alice", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Address)
	assert.Equal(t, "alice", claims.Subject)
}

func TestParseTokenRejects(t *testing.T) {
	token, err := GenerateToken("secret", "alice", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken("secret", "alice", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("secret", "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("", token)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestGenerateTokenRequiresInputs(t *testing.T) {
	_, err := GenerateToken("", "alice", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
	_, err = GenerateToken("secret", "", time.Hour)
	assert.Error(t, err)
}
