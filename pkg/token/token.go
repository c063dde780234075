package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// DefaultLength is the default secret length in bytes.
const DefaultLength = 32

// MinLength is the shortest secret GenerateWithLength accepts.
const MinLength = 16

// fingerprintLen is the number of hex characters kept by Fingerprint.
const fingerprintLen = 12

// Generate returns a random secret of DefaultLength bytes.
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithLength returns a random secret of length bytes.
func GenerateWithLength(length int) (string, error) {
	if length < MinLength {
		return "", fmt.Errorf("token: length %d below minimum %d", length, MinLength)
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash returns the hex SHA-256 digest of s.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Fingerprint returns a short digest prefix that identifies s in logs
// without revealing it.
func Fingerprint(s string) string {
	if s == "" {
		return ""
	}
	return Hash(s)[:fingerprintLen]
}

// Equal compares two secrets in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
