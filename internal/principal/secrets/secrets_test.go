package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
)

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	t.Run("hash then verify", func(t *testing.T) {
		hash, err := h.Hash("s3cret-value")
		require.NoError(t, err)
		assert.NotEqual(t, "s3cret-value", hash)
		assert.NoError(t, h.Verify("s3cret-value", hash))
	})

	t.Run("wrong secret is a mismatch", func(t *testing.T) {
		hash, err := h.Hash("s3cret-value")
		require.NoError(t, err)
		assert.ErrorIs(t, h.Verify("other", hash), ErrMismatch)
	})

	t.Run("empty secret rejected", func(t *testing.T) {
		_, err := h.Hash("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("cost is clamped", func(t *testing.T) {
		assert.Equal(t, bcrypt.MinCost, NewHasher(0).cost)
	})

	t.Run("burn does not panic on any input", func(t *testing.T) {
		h.Burn("")
		h.Burn("anything")
	})
}
