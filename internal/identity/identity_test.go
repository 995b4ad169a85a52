package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpchat/corpchat/internal/domain"
)

const testSecret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestResolveValidToken(t *testing.T) {
	r := NewResolver(testSecret)
	token := sign(t, jwt.MapClaims{
		"sub":  "alice",
		"role": "admin",
		"name": "Alice A",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	p, err := r.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, domain.RoleAdmin, p.Role)
	assert.Equal(t, "Alice A", p.DisplayName)
	assert.True(t, p.IsAdmin())
}

func TestResolveDefaultsToMemberRole(t *testing.T) {
	r := NewResolver(testSecret)
	token := sign(t, jwt.MapClaims{"sub": "bob"})

	p, err := r.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, p.Role)
	assert.False(t, p.IsAdmin())
}

func TestResolveUserIDClaimFallback(t *testing.T) {
	r := NewResolver(testSecret)
	token := sign(t, jwt.MapClaims{"user_id": "carol"})

	p, err := r.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "carol", p.UserID)
}

func TestResolveRejectsBadSignature(t *testing.T) {
	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"})
	s, err := other.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	_, err = NewResolver(testSecret).Resolve(s)
	assert.Error(t, err)
}

func TestResolveRejectsExpiredToken(t *testing.T) {
	r := NewResolver(testSecret)
	token := sign(t, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := r.Resolve(token)
	assert.Error(t, err)
}

func TestResolveRejectsMissingSubject(t *testing.T) {
	r := NewResolver(testSecret)
	token := sign(t, jwt.MapClaims{"role": "admin"})

	_, err := r.Resolve(token)
	assert.Error(t, err)
}

func TestResolveRejectsGarbage(t *testing.T) {
	_, err := NewResolver(testSecret).Resolve("not-a-token")
	assert.Error(t, err)
}
