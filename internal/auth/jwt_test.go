package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/model"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret-key"

	token, err := GenerateToken(secret, 1, "admin@example.com", model.RoleAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokensHaveDistinctIDs(t *testing.T) {
	t1, err := GenerateToken("s", 1, "a@example.com", model.RoleUser)
	require.NoError(t, err)
	t2, err := GenerateToken("s", 1, "a@example.com", model.RoleUser)
	require.NoError(t, err)

	c1, err := ValidateToken("s", t1)
	require.NoError(t, err)
	c2, err := ValidateToken("s", t2)
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret1", 1, "a@example.com", model.RoleAdmin)
	require.NoError(t, err)

	_, err = ValidateToken("secret2", token)
	assert.Error(t, err)
}

func TestValidateTokenInvalid(t *testing.T) {
	_, err := ValidateToken("secret", "not-a-token")
	assert.Error(t, err)
}

func TestValidateTokenRejectsUnknownRole(t *testing.T) {
	claims := Claims{
		UserID: 1,
		Role:   "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	_, err = ValidateToken("s", token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	claims := Claims{
		UserID: 1,
		Role:   model.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	_, err = ValidateToken("s", token)
	assert.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	token, err := GenerateToken("test", 1, "a@example.com", model.RoleUser)
	require.NoError(t, err)
	claims, err := ValidateToken("test", token)
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().Add(TokenExpiry), claims.ExpiresAt.Time, 5*time.Second)
}
