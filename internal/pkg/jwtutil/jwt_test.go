package jwtutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 42, "ada")
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ada", claims.Username)
}

func TestParseRejects(t *testing.T) {
	valid, err := GenerateToken("secret", time.Hour, 1, "ada")
	require.NoError(t, err)
	expired, err := GenerateToken("secret", -time.Minute, 1, "ada")
	require.NoError(t, err)
	noUser, err := GenerateToken("secret", time.Hour, 0, "ghost")
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]struct {
		secret string
		token  string
	}{
		"wrong secret": {"other", valid},
		"expired":      {"secret", expired},
		"no user id":   {"secret", noUser},
		"alg none":     {"secret", none},
		"garbage":      {"secret", "not-a-token"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(tc.secret, tc.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
