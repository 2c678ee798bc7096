// Package users declares the account repository and its PostgreSQL
// implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores accounts and their role memberships.
//
// Lookups return common.ErrorNotFound when the account is absent. Create and
// Update return common.ErrEmailTaken or common.ErrUserNameTaken when a unique
// constraint rejects the row.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UserNameExists(ctx context.Context, userName string) (bool, error)

	// Update replaces the profile fields (email, names, gender).
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error

	// Roles lists the account's roles in ascending order.
	Roles(ctx context.Context, userID string) ([]string, error)
	// AddRole is idempotent.
	AddRole(ctx context.Context, userID, role string) error
}
