package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService("test-secret-key-at-least-32-chars!!", 15*time.Minute, 7*24*time.Hour)
}

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	svc := newTestJWTService()

	token, expiresAt, err := svc.GenerateAccessToken("user-1", "student@example.com", "student")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "student@example.com", claims.Email)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestJWTService_GenerateAndValidateRefreshToken(t *testing.T) {
	svc := newTestJWTService()

	token, expiresAt, err := svc.GenerateRefreshToken("user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), expiresAt, 5*time.Second)

	userID, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestJWTService_RefreshTokenRejectedAsAccessToken(t *testing.T) {
	svc := newTestJWTService()

	token, _, err := svc.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_AccessTokenRejectedAsRefreshToken(t *testing.T) {
	svc := newTestJWTService()

	token, _, err := svc.GenerateAccessToken("user-1", "student@example.com", "student")
	require.NoError(t, err)

	_, err = svc.ValidateRefreshToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ValidateAccessToken_Expired(t *testing.T) {
	svc := NewJWTService("test-secret-key-at-least-32-chars!!", -1*time.Minute, 7*24*time.Hour)

	token, _, err := svc.GenerateAccessToken("user-1", "student@example.com", "student")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_ValidateAccessToken_WrongSecret(t *testing.T) {
	svc := newTestJWTService()
	other := NewJWTService("another-secret-key-also-32-chars!!!", 15*time.Minute, 7*24*time.Hour)

	token, _, err := other.GenerateAccessToken("user-1", "student@example.com", "student")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ValidateAccessToken_WrongAlgorithm(t *testing.T) {
	svc := newTestJWTService()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:    "user-1",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ValidateAccessToken_Garbage(t *testing.T) {
	svc := newTestJWTService()

	_, err := svc.ValidateAccessToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Expiries(t *testing.T) {
	svc := newTestJWTService()

	assert.Equal(t, 15*time.Minute, svc.AccessTokenExpiry())
	assert.Equal(t, 7*24*time.Hour, svc.RefreshTokenExpiry())
}
