package models

import "time"

// RefreshToken is a server-stored, revocable credential. The store keeps a
// SHA-256 of the opaque value; Token carries the raw value only on the
// record returned at creation time and is empty on reads.
//
// Revoked is monotonic: once true it never reverts, and a revoked token
// must never authorize issuance again.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
