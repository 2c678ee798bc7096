package auth

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// RefreshSecretSize is the number of random bytes in a refresh secret.
const RefreshSecretSize = 64

// GenerateRefreshSecret returns a fresh refresh secret: 64 bytes from
// crypto/rand, base64 standard encoded. It is handed to the client once.
func GenerateRefreshSecret() string {
	return base64.StdEncoding.EncodeToString(common.GenerateRandByteArray(RefreshSecretSize))
}

// Fingerprint maps a refresh secret to the value kept in storage: SHA-256
// over the secret's bytes, base64 standard encoded.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}
