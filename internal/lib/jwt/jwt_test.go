package jwt

import (
	"testing"
	"time"

	"authsvc/internal/domain/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer("", "authsvc", "course-platform", time.Hour)
	require.ErrorIs(t, err, ErrNoSecret)
}

func TestIssueAndParseAccessToken(t *testing.T) {
	issuer, err := NewIssuer("test-secret", "authsvc", "course-platform", time.Hour)
	require.NoError(t, err)

	user := &models.User{
		ID:            uuid.New(),
		Email:         "student@example.com",
		EmailVerified: true,
	}

	issuedAt := time.Now()
	tokenString, err := issuer.IssueAccessToken(user, "Student")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := issuer.ParseAccessToken(tokenString)
	require.NoError(t, err)

	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, "Student", claims.Role)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, "authsvc", claims.Issuer)
	assert.NotEmpty(t, claims.ID, "jti must be set")
	assert.InDelta(t, issuedAt.Add(time.Hour).Unix(), claims.ExpiresAt.Unix(), 1)
}

func TestJTIUniquePerToken(t *testing.T) {
	issuer, err := NewIssuer("test-secret", "authsvc", "course-platform", time.Hour)
	require.NoError(t, err)

	user := &models.User{ID: uuid.New(), Email: "a@x.com"}

	first, err := issuer.IssueAccessToken(user, "Student")
	require.NoError(t, err)
	second, err := issuer.IssueAccessToken(user, "Student")
	require.NoError(t, err)

	firstClaims, err := issuer.ParseAccessToken(first)
	require.NoError(t, err)
	secondClaims, err := issuer.ParseAccessToken(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestParseRejectsExpired(t *testing.T) {
	issuer, err := NewIssuer("test-secret", "authsvc", "course-platform", -time.Minute)
	require.NoError(t, err)

	tokenString, err := issuer.IssueAccessToken(&models.User{ID: uuid.New()}, "Student")
	require.NoError(t, err)

	_, err = issuer.ParseAccessToken(tokenString)
	assert.Error(t, err)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer, err := NewIssuer("secret-one", "authsvc", "course-platform", time.Hour)
	require.NoError(t, err)
	other, err := NewIssuer("secret-two", "authsvc", "course-platform", time.Hour)
	require.NoError(t, err)

	tokenString, err := issuer.IssueAccessToken(&models.User{ID: uuid.New()}, "Student")
	require.NoError(t, err)

	_, err = other.ParseAccessToken(tokenString)
	assert.Error(t, err)
}

func TestNewRefreshTokenValue(t *testing.T) {
	first, err := NewRefreshTokenValue()
	require.NoError(t, err)
	second, err := NewRefreshTokenValue()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	// 64 random bytes in unpadded base64url.
	assert.Len(t, first, 86)
}
