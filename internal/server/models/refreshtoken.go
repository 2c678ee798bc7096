package models

import "time"

// RefreshToken is the stored half of a refresh token: the fingerprint of
// the secret handed to the client and its expiry. The secret itself is
// never persisted.
type RefreshToken struct {
	UserID    string
	TokenHash string
	Expires   time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.Expires)
}
