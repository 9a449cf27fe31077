package cryptox

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndMatch(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	digest, err := h.Hash("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, "secret1", digest)
	assert.True(t, h.Matches(digest, "secret1"))
	assert.False(t, h.Matches(digest, "secret2"))
	assert.False(t, h.Matches("", "secret1"))

	again, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, digest, again, "digests are salted")
}

func TestNewHasher_Clamps(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).Cost)
	assert.Equal(t, bcrypt.MaxCost, NewHasher(100).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost)
}

func TestRandomNumber(t *testing.T) {
	for i := 0; i < 200; i++ {
		s, err := RandomNumber(100000, 999999)
		require.NoError(t, err)
		require.Len(t, s, 6)

		n, err := strconv.Atoi(s)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
	}

	_, err := RandomNumber(5, 1)
	assert.Error(t, err)
}
