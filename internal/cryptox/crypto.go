// Package cryptox wraps the one-way hashing and randomness used for
// passwords and one-time codes.
package cryptox

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// Hasher produces salted bcrypt digests. The zero value uses bcrypt.DefaultCost.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given cost, clamped to bcrypt's range.
// Zero selects bcrypt.DefaultCost.
func NewHasher(cost int) Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return Hasher{Cost: cost}
}

// Hash returns the bcrypt digest of secret. Inputs longer than 72 bytes are
// rejected by bcrypt.
func (h Hasher) Hash(secret string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Matches reports whether secret hashes to digest.
func (h Hasher) Matches(digest, secret string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

// RandomNumber returns a decimal string for a value drawn uniformly from
// [min, max] using crypto/rand.
func RandomNumber(min, max int64) (string, error) {
	if max < min {
		return "", errors.New("cryptox: empty range")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(min+n.Int64(), 10), nil
}
