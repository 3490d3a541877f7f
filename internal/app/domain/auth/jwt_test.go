package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/medical-record/internal/app/models"
)

func TestTokenIssuer(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := now
	issuer := NewTokenIssuer(testSecret, 7*24*time.Hour).WithClock(func() time.Time { return clock })
	user := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	token, expiresAt, err := issuer.Issue(user)
	require.NoError(t, err)
	assert.Equal(t, now.Add(7*24*time.Hour), expiresAt)

	t.Run("RoundTrip", func(t *testing.T) {
		claims, err := issuer.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID())
		assert.Equal(t, models.RoleAdmin, claims.Role)
		assert.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
	})

	t.Run("ValidJustBeforeExpiry", func(t *testing.T) {
		clock = now.Add(7*24*time.Hour - time.Second)
		defer func() { clock = now }()

		_, err := issuer.Verify(token)
		assert.NoError(t, err)
	})

	t.Run("ExpiredAfterSevenDays", func(t *testing.T) {
		clock = now.Add(7*24*time.Hour + time.Second)
		defer func() { clock = now }()

		_, err := issuer.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewTokenIssuer("another-secret-entirely", time.Hour).WithClock(func() time.Time { return clock })
		_, err := other.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("OtherAlgorithmRejected", func(t *testing.T) {
		claims := Claims{
			Role: models.RoleUser,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   user.ID.String(),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = issuer.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("NoneAlgorithmRejected", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = issuer.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("MissingExpiryRejected", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID.String()}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = issuer.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("SubjectMustBeUserID", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = issuer.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := issuer.Verify("abc")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
