package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

func TestTokenManager(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	manager := NewTokenManager(testSecret, time.Hour).WithClock(clock)

	token, err := manager.Issue("user-1")
	require.NoError(t, err)

	t.Run("verifies issued token", func(t *testing.T) {
		userID, err := manager.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)
	})

	t.Run("reports expiry separately", func(t *testing.T) {
		later := NewTokenManager(testSecret, time.Hour).WithClock(func() time.Time {
			return now.Add(2 * time.Hour)
		})
		_, err := later.Verify(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		other := NewTokenManager("another-secret-that-is-also-long-enough", time.Hour).WithClock(clock)
		_, err := other.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := manager.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("rejects tampered token", func(t *testing.T) {
		_, err := manager.Verify(token + "x")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("rejects other signing method", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			StandardClaims: jwt.StandardClaims{Subject: "user-1", Issuer: issuer, ExpiresAt: now.Add(time.Hour).Unix()},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = manager.Verify(unsigned)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("rejects token without subject", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			StandardClaims: jwt.StandardClaims{Issuer: issuer, ExpiresAt: now.Add(time.Hour).Unix()},
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = manager.Verify(raw)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
