package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddlearena/realtime/config"
)

func testValidator() *JWTValidator {
	return NewJWTValidator(&config.AuthConfig{
		JWTSecret:         "test-secret",
		RevocationListKey: "jwt:revoked",
	}, nil)
}

func sign(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	v := testValidator()
	ctx := context.Background()

	tokenString := sign(t, "test-secret", jwt.RegisteredClaims{
		Subject:   "alice",
		ID:        "jti-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	claims, err := v.ValidateToken(ctx, tokenString)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "jti-1", claims.ID)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	v := testValidator()

	tokenString := sign(t, "other-secret", jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := v.ValidateToken(context.Background(), tokenString)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	v := testValidator()

	tokenString := sign(t, "test-secret", jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})

	_, err := v.ValidateToken(context.Background(), tokenString)
	assert.Error(t, err)
}

func TestValidateTokenRequiresSubject(t *testing.T) {
	v := testValidator()

	tokenString := sign(t, "test-secret", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := v.ValidateToken(context.Background(), tokenString)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	v := testValidator()
	_, err := v.ValidateToken(context.Background(), "not.a.jwt")
	assert.Error(t, err)
}
