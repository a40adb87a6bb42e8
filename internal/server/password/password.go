// Package password wraps bcrypt hashing and verification of user passwords.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost used when no cost is configured.
const DefaultCost = bcrypt.DefaultCost

// Hash returns the bcrypt hash of plain with the given cost. Cost values
// outside the bcrypt range fall back to DefaultCost.
func Hash(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plain matches the stored bcrypt hash. The
// comparison inside bcrypt is constant-time with respect to match position.
// Fails closed: a malformed hash or any comparison error is a non-match.
func Verify(plain, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain)) == nil
}
