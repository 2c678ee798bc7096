// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. PasswordHash is never the plaintext.
type User struct {
	ID           string    `db:"id"`
	UserName     string    `db:"username"`
	Email        string    `db:"email"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Gender       string    `db:"gender"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`

	// RefreshToken is the single active refresh token, nil when none.
	RefreshToken *RefreshToken
}
