package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/clock"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/models"
)

const testKey = "test-signing-key-with-enough-length-0123"

var start = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, clk clock.Clock) *JWTService {
	t.Helper()
	svc, err := NewJWTService(testKey, "sistema-de-abordagem", clk)
	require.NoError(t, err)
	return svc
}

func Test_NewJWTService_RequiresKey(t *testing.T) {
	_, err := NewJWTService("", "issuer", nil)
	require.Error(t, err)
}

func Test_IssueThenVerify(t *testing.T) {
	clk := clock.NewFake(start)
	svc := newService(t, clk)

	for _, role := range []models.Role{models.RoleAdmin, models.RoleStandard} {
		token, expiresAt, err := svc.Issue("257", role)
		require.NoError(t, err)
		assert.Equal(t, start.Add(TokenTTL), expiresAt)

		id, err := svc.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "257", id.PrincipalID)
		assert.Equal(t, role, id.Role)
		assert.True(t, id.ExpiresAt.Equal(start.Add(TokenTTL)))
	}
}

func Test_Verify_ExpiresAfterFixedWindow(t *testing.T) {
	clk := clock.NewFake(start)
	svc := newService(t, clk)

	token, _, err := svc.Issue("310", models.RoleStandard)
	require.NoError(t, err)

	clk.Advance(TokenTTL - time.Minute)
	_, err = svc.Verify(token)
	require.NoError(t, err, "still valid just before the window closes")

	clk.Advance(2 * time.Minute)
	_, err = svc.Verify(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func Test_Verify_WrongSecret(t *testing.T) {
	clk := clock.NewFake(start)
	token, _, err := newService(t, clk).Issue("310", models.RoleStandard)
	require.NoError(t, err)

	other, err := NewJWTService("a-different-signing-key-0123456789abcdef", "sistema-de-abordagem", clk)
	require.NoError(t, err)
	_, err = other.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func Test_Verify_Malformed(t *testing.T) {
	svc := newService(t, clock.NewFake(start))
	for _, tok := range []string{"", "invalid-token-string", "a.b.c"} {
		_, err := svc.Verify(tok)
		require.ErrorIs(t, err, ErrInvalidToken, tok)
	}
}

func Test_Verify_RejectsOtherAlgorithms(t *testing.T) {
	clk := clock.NewFake(start)
	svc := newService(t, clk)

	claims := Claims{
		Role: string(models.RoleAdmin),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "257",
			Issuer:    "sistema-de-abordagem",
			ExpiresAt: jwt.NewNumericDate(start.Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testKey))
	require.NoError(t, err)
	_, err = svc.Verify(hs512)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func Test_Verify_RejectsUnknownRole(t *testing.T) {
	clk := clock.NewFake(start)
	svc := newService(t, clk)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "root",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "257",
			Issuer:    "sistema-de-abordagem",
			ExpiresAt: jwt.NewNumericDate(start.Add(time.Hour)),
		},
	}).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = svc.Verify(forged)
	require.ErrorIs(t, err, ErrInvalidToken)
}
