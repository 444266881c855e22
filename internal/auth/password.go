package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when a blank password is offered for hashing.
var ErrEmptyPassword = errors.New("password cannot be empty")

// Hasher hashes and verifies user passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher returns a hasher using cost, clamped to bcrypt's accepted range.
// A zero cost selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. A missing hash never matches.
func (h *Hasher) Verify(hash *string, password string) bool {
	if hash == nil || *hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)) == nil
}
