// Package refreshtokens provides durable storage for refresh tokens and the
// atomic rotation step the credential lifecycle depends on. Token values are
// stored as SHA-256 digests; the raw value exists only in the record
// returned at creation time.
package refreshtokens

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dmanankin/authvault/internal/common"
	"github.com/dmanankin/authvault/internal/server/models"
)

// Store defines operations for issuing, retrieving, revoking, and rotating
// refresh tokens. Implementations must guarantee that Rotate is atomic:
// concurrent rotations of the same token admit exactly one winner, and the
// losers fail with common.ErrTokenReused.
type Store interface {
	// Create generates a new unguessable token value for userID with an
	// expiry of now+validity and stores it unrevoked. The returned record
	// carries the raw value in Token.
	Create(ctx context.Context, userID string, validity time.Duration) (*models.RefreshToken, error)

	// Find looks up a token record by its raw value and returns its current
	// state, including the revocation flag as of the read. Returns
	// common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke marks the record with the given id revoked. Idempotent:
	// revoking an already-revoked or missing token is not an error.
	Revoke(ctx context.Context, id string) error

	// Rotate revokes the record for the raw token value, but only if it is
	// still active, and creates a replacement for userID in the same atomic
	// step. If the token was already revoked (or revoked concurrently),
	// Rotate returns common.ErrTokenReused and creates nothing.
	Rotate(ctx context.Context, token string, userID string, validity time.Duration) (*models.RefreshToken, error)
}

// tokenValueBytes is the entropy of a raw token value (hex-encoded to twice
// this many characters).
const tokenValueBytes = 32

func newTokenValue() (string, error) {
	return common.MakeRandHexString(tokenValueBytes)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
