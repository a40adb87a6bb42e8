// Package users declares the server-side repository contract for user
// accounts. The credential flows only ever read users; Create exists for
// registration.
package users

import (
	"context"

	"github.com/dmanankin/authvault/internal/server/models"
)

// Repository defines storage operations for user accounts.
type Repository interface {
	// Create stores a new user and returns it with the generated id.
	// A duplicate email yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the user with the given email, or
	// common.ErrorNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns the user with the given id, or common.ErrorNotFound
	// if absent.
	GetByID(ctx context.Context, id string) (*models.User, error)
}
