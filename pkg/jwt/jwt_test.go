package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	util := NewJWTUtil("secret", time.Hour)

	token, err := util.GenerateToken("u1", "driver@example.com", "driver")
	require.NoError(t, err)

	claims, err := util.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "driver@example.com", claims.Email)
	assert.Equal(t, "driver", claims.Role)
	assert.Equal(t, "fleet-mileage", claims.Issuer)
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := NewJWTUtil("secret", time.Hour).GenerateToken("u1", "a@b.c", "admin")
	require.NoError(t, err)

	_, err = NewJWTUtil("other", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidate_Expired(t *testing.T) {
	util := NewJWTUtil("secret", time.Minute)
	util.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := util.GenerateToken("u1", "a@b.c", "driver")
	require.NoError(t, err)

	_, err = util.ValidateToken(token)
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	long := NewJWTUtil("secret", 24*time.Hour)
	token, err := long.GenerateToken("u1", "a@b.c", "copilot")
	require.NoError(t, err)

	same, err := long.RefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, token, same)

	short := NewJWTUtil("secret", 30*time.Minute)
	token, err = short.GenerateToken("u1", "a@b.c", "copilot")
	require.NoError(t, err)

	// move past the second boundary so the reissued token differs
	short.now = func() time.Time { return time.Now().Add(2 * time.Second) }
	fresh, err := short.RefreshToken(token)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)

	claims, err := short.ValidateToken(fresh)
	require.NoError(t, err)
	assert.Equal(t, "copilot", claims.Role)
}
