package auth

import (
	"testing"
	"time"

	"tourbackend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseDriverToken(t *testing.T) {
	now := time.Now()
	tok, err := Sign("secret", domain.RoleDriver, "drv-1", "d@example.com", time.Hour, now)
	require.NoError(t, err)

	claims, err := Parse("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDriver, claims.Role)
	assert.Equal(t, "drv-1", claims.Subject)
	assert.Equal(t, "d@example.com", claims.Email)
}

func TestParseRejectsBadTokens(t *testing.T) {
	now := time.Now()
	expired, err := Sign("secret", domain.RoleAnon, "", "", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	wrongKey, err := Sign("other", domain.RoleServiceRole, "", "", 0, now)
	require.NoError(t, err)
	noSubject, err := Sign("secret", domain.RoleDriver, "", "", time.Hour, now)
	require.NoError(t, err)
	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"role": "service_role"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"expired":   expired,
		"wrong key": wrongKey,
		"no sub":    noSubject,
		"bad role":  badRole,
		"alg none":  none,
		"garbage":   "not-a-token",
	}
	for name, tok := range cases {
		if _, err := Parse("secret", tok); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSignRequiresSecret(t *testing.T) {
	_, err := Sign("", domain.RoleAnon, "", "", 0, time.Now())
	assert.ErrorIs(t, err, ErrNoSecret)
}
