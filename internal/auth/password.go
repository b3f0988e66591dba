// Package auth hashes passwords and issues and verifies signed access tokens.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords with bcrypt. The hash string embeds
// the algorithm version, cost and salt.
type Hasher struct {
	cost      int
	dummyHash []byte
}

// NewHasher returns a Hasher using the given bcrypt cost.
func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("invalid bcrypt cost %d", cost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Hasher{cost: cost, dummyHash: dummy}, nil
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether candidate matches hash. Malformed hashes never match.
func (h *Hasher) Verify(hash, candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
	return err == nil
}

// VerifyMissing burns the same work as Verify for a login whose account does
// not exist, so both failure paths take comparable time.
func (h *Hasher) VerifyMissing(candidate string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(candidate))
}
