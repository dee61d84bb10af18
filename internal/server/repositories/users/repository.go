// Package users persists account records. Two backends implement Repository:
// PostgreSQL (database/sql over pgx) and MongoDB.
package users

import (
	"context"

	"github.com/dmitrijs2005/accounts/internal/server/models"
)

// Repository is the raw persistence contract. Passwords arrive already hashed;
// hashing belongs to the store layer above.
type Repository interface {
	// Create inserts user and fills in ID and timestamps. It returns
	// common.ErrConflict when the username or email is already taken.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// FindByUsernameOrEmail matches on either field; an empty argument is
	// ignored. Returns common.ErrRecordNotFound when nothing matches.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)

	// FindByID returns common.ErrRecordNotFound for unknown or malformed ids.
	FindByID(ctx context.Context, id string) (*models.User, error)

	// UpdateRefreshToken sets the stored refresh token; nil clears it.
	UpdateRefreshToken(ctx context.Context, id string, token *string) error

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}
