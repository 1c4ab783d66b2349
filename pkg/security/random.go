package security

import (
	"crypto/rand"
	"fmt"
)

// Meeting passwords are access convenience, not a security boundary, but
// the source must be unbiased. The alphabet has 32 characters so a 5-bit
// mask maps bytes onto it with no modulo bias. Ambiguous characters
// (0/O, 1/l) are left out.
const passwordAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"

// RandomString returns a random string of length n drawn from the
// password alphabet.
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = passwordAlphabet[b&31]
	}
	return string(buf), nil
}
