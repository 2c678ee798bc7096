// Package common defines shared constants and sentinel errors used across
// client and server layers of gophauth. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrEmailTaken    = errors.New("email already taken")
	ErrUserNameTaken = errors.New("user name already taken")

	// Service-level errors. Messages are shown to clients as is.
	ErrDuplicateAccount    = errors.New("email already exists")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAccountNotFound     = errors.New("user not found")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrPersistence         = errors.New("persistence failure")

	// Startup errors.
	ErrConfiguration = errors.New("configuration error")

	// Access token errors (invalid or malformed token, expired token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Boundary errors.
	ErrorValidation = errors.New("validation error")
)
