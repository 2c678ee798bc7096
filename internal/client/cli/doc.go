// Package cli implements the interactive gophauth command-line client:
// a small REPL over the gRPC client for registering, logging in, checking
// the current identity and managing the refresh token.
package cli
