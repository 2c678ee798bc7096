package services

import (
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// AccountView is the outward representation of an account. It never
// carries the password hash or refresh-token state.
type AccountView struct {
	ID        string
	UserName  string
	Email     string
	FirstName string
	LastName  string
	Gender    string
	Roles     []string
	CreatedAt time.Time
}

func newAccountView(u *models.User, roles []string) AccountView {
	return AccountView{
		ID:        u.ID,
		UserName:  u.UserName,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Gender:    u.Gender,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
	}
}

type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Gender    string
}

// UpdateRequest replaces every profile field of an account.
type UpdateRequest struct {
	Email     string
	FirstName string
	LastName  string
	Gender    string
}

type RegisterResult struct {
	Account     AccountView
	AccessToken *auth.AccessToken
}

type LoginResult struct {
	AccessToken *auth.AccessToken
	// RefreshToken is the raw secret. This is the only place it ever leaves
	// the server.
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	Account               AccountView
}

type RefreshResult struct {
	AccessToken *auth.AccessToken
	Account     AccountView
}

// RevokeResult reports the outcome of a revocation; revocation never fails
// with an error.
type RevokeResult struct {
	Success bool
	Message string
}

// IdentityResolver yields the caller's account id, or false when the caller
// is anonymous.
type IdentityResolver func() (string, bool)
