// Package secrets hashes and verifies principal secrets with bcrypt.
package secrets

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
)

// DefaultCost matches the work factor used for stored secrets.
const DefaultCost = 12

// ErrMismatch is returned when a secret does not match its hash.
var ErrMismatch = errors.New("secret mismatch")

// Hasher hashes with a fixed bcrypt cost.
type Hasher struct {
	cost  int
	dummy []byte
}

// NewHasher returns a hasher with the given cost, clamped to bcrypt's bounds.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("unused-dummy-secret"), cost)
	return &Hasher{cost: cost, dummy: dummy}
}

// Hash creates a bcrypt hash of the provided secret.
func (h *Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeValidation, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a plaintext secret against a bcrypt hash.
func (h *Hasher) Verify(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return fmt.Errorf("could not verify secret: %w", err)
	}
	return nil
}

// Burn spends the same work as a real verification. Used when the principal
// does not exist so response time does not reveal it.
func (h *Hasher) Burn(secret string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(secret))
}
