package common

import "crypto/rand"

// GenerateRandByteArray returns size bytes read from crypto/rand.
// rand.Read never fails on supported platforms; if the OS source is
// unavailable the runtime terminates the process.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	_, _ = rand.Read(b)
	return b
}

// WipeByteArray overwrites b with zeros. Used for passwords read from the
// terminal. A nil slice is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
