package auth

import (
	"testing"
	"time"

	"mizupay/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 168 * time.Hour,
		Issuer:        "mizupay",
	}
}

func TestMintAndParsePair(t *testing.T) {
	cfg := testJWTConfig()
	pair, err := MintPair(cfg, 42, "user@example.com", "USER")
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	claims, err := ParseAccessToken(cfg, pair.Access)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "USER", claims.Role)
	assert.Equal(t, "mizupay", claims.Issuer)

	id, err := ParseRefreshToken(cfg, pair.Refresh)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	cfg := testJWTConfig()
	pair, err := MintPair(cfg, 1, "u@example.com", "USER")
	require.NoError(t, err)

	// Refresh token signed with a different secret must not pass as access.
	_, err = ParseAccessToken(cfg, pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = ParseRefreshToken(cfg, pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessExpiry = -time.Minute
	pair, err := MintPair(cfg, 1, "u@example.com", "USER")
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	cfg := testJWTConfig()
	_, err := ParseAccessToken(cfg, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = ParseRefreshToken(cfg, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
