// Package refreshtokens declares the server-side repository contract for
// the refresh-token pair kept on each account row, and its PostgreSQL
// implementation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository manages the single active refresh token of an account. Only
// fingerprints are stored, never the secret.
type Repository interface {
	// Save sets the account's fingerprint and expiry, replacing any previous
	// pair. Returns common.ErrorNotFound if the account does not exist.
	Save(ctx context.Context, userID string, tokenHash string, expires time.Time) error

	// Find looks up the account holding tokenHash.
	// Returns common.ErrorNotFound when no account holds it.
	Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Delete clears the pair only if the account still holds tokenHash.
	// Returns common.ErrorNotFound when nothing was cleared.
	Delete(ctx context.Context, userID string, tokenHash string) error
}
