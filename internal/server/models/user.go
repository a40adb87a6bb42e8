// Package models holds the server-side domain model: users, refresh tokens,
// and issued token pairs.
package models

import "time"

// User is an account record. Email uniquely identifies a user; PasswordHash
// is a bcrypt hash and never leaves the server.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
