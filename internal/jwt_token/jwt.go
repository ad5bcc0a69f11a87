package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/clock"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/models"
	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
)

// TokenTTL is fixed at issuance and never extended.
const TokenTTL = 24 * time.Hour

var (
	ErrInvalidToken = dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	ErrExpiredToken = dErrors.New(dErrors.CodeUnauthorized, "token has expired")
)

// Claims represents the JWT claims for bearer credentials. The principal id
// travels in the subject.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is what a verified credential asserts.
type Identity struct {
	PrincipalID string
	Role        models.Role
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// JWTService issues and verifies HS256 credentials. It holds no state beyond
// the signing key, so verification never touches a store.
type JWTService struct {
	signingKey []byte
	issuer     string
	clock      clock.Clock
}

func NewJWTService(signingKey, issuer string, clk clock.Clock) (*JWTService, error) {
	if signingKey == "" {
		return nil, errors.New("signing key is required")
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		clock:      clk,
	}, nil
}

// Issue signs a credential for the principal that expires TokenTTL from now.
func (s *JWTService) Issue(principalID string, role models.Role) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature, structure and expiry.
func (s *JWTService) Verify(tokenString string) (*Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	role := models.Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return nil, ErrInvalidToken
	}

	id := &Identity{
		PrincipalID: claims.Subject,
		Role:        role,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	return id, nil
}
