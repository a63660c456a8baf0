package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	svc, err := NewJWTService("secret", "remix-api", time.Hour)
	require.NoError(t, err)

	id := uuid.New()
	token, issued, err := svc.Issue(id, "student")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := svc.Validate(token)
	require.NoError(t, err)

	got, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestValidateRejectsExpired(t *testing.T) {
	issuedAt := time.Now().Add(-2 * time.Hour)
	issuer, err := NewJWTService("secret", "remix-api", time.Hour, WithClock(func() time.Time { return issuedAt }))
	require.NoError(t, err)
	token, _, err := issuer.Issue(uuid.New(), "student")
	require.NoError(t, err)

	verifier, err := NewJWTService("secret", "remix-api", time.Hour)
	require.NoError(t, err)
	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsOtherSecretAndAlgorithm(t *testing.T) {
	a, _ := NewJWTService("secret-a", "remix-api", time.Hour)
	b, _ := NewJWTService("secret-b", "remix-api", time.Hour)

	token, _, err := a.Issue(uuid.New(), "student")
	require.NoError(t, err)
	_, err = b.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    "remix-api",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService("", "remix-api", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}
