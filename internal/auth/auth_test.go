package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printcost-backend/internal/model"
)

func testUser() *model.User {
	companyID := "c-1"
	return &model.User{ID: "u-1", Username: "alice", CompanyID: &companyID, Role: model.RoleAdmin}
}

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	token, err := issuer.Generate(testUser())
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "c-1", claims.CompanyID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
}

func TestIssuer_SuperadminHasNoCompany(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, err := issuer.Generate(&model.User{ID: "root", Username: "root", Role: model.RoleSuperAdmin})
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Empty(t, claims.CompanyID)
}

func TestIssuer_Rejects(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, err := issuer.Generate(testUser())
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewIssuer("other", time.Hour).Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewIssuer("secret", time.Hour)
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := late.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Validate("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u-1"})
		s, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Validate(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
}

func TestRememberToken(t *testing.T) {
	token, hash, err := NewRememberToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashRememberToken(token))

	other, _, err := NewRememberToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, err := FromContext(c)
	assert.ErrorIs(t, err, ErrNoClaims)

	c.Set(ContextKey, &Claims{UserID: "u-1"})
	claims, err := FromContext(c)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}
