package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2id parameters for password and API key secret hashing.
const (
	// Argon2Memory is the memory parameter in KiB (16 MiB).
	Argon2Memory uint32 = 16384

	// Argon2Time is the iteration count.
	Argon2Time uint32 = 2

	// Argon2Parallelism is the parallelism factor.
	Argon2Parallelism uint8 = 2

	// Argon2KeyLen is the output hash length in bytes.
	Argon2KeyLen uint32 = 32

	// Argon2SaltLen is the salt length in bytes.
	Argon2SaltLen = 16
)

// ErrMalformedHash is returned by ParseHashParams for strings that are not
// PHC-formatted argon2id hashes.
var ErrMalformedHash = errors.New("domain: malformed argon2id hash")

// HashSecret computes an argon2id hash of secret in PHC string format:
// $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
func HashSecret(secret string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(secret), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Argon2Memory, Argon2Time, Argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifySecret reports whether secret matches an argon2id hash produced by
// HashSecret. Parameters are read from the hash so older hashes keep working
// after the defaults change.
//
// Password hashes imported from the STOCKER users table are bcrypt; those
// are checked with bcrypt.
func VerifySecret(secret, encoded string) bool {
	if IsBcryptHash(encoded) {
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret)) == nil
	}

	p, salt, expected, err := parseHash(encoded)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(secret), salt, p.time, p.memory, p.threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

type hashParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

func parseHash(encoded string) (hashParams, []byte, []byte, error) {
	var p hashParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, ErrMalformedHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	return p, salt, hash, nil
}

// IsArgon2Hash reports whether s parses as an argon2id PHC string.
func IsArgon2Hash(s string) bool {
	_, _, _, err := parseHash(s)
	return err == nil
}

// IsBcryptHash reports whether s is a bcrypt ($2a$, $2b$, $2y$) hash.
func IsBcryptHash(s string) bool {
	if !strings.HasPrefix(s, "$2") {
		return false
	}
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// IsPasswordHash reports whether VerifySecret can check passwords against s.
func IsPasswordHash(s string) bool {
	return IsArgon2Hash(s) || IsBcryptHash(s)
}

// User is an account allowed to log in with a password.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Roles        []string
	Active       bool
}

// APIKey is a machine credential presented as "<KeyID>:<secret>".
type APIKey struct {
	KeyID      string
	Name       string
	SecretHash string
	Subject    string
	Roles      []string
	Enabled    bool
}

// APIKeyIDPrefix is the prefix of generated API key ids.
const APIKeyIDPrefix = "sgak-"

// SplitAPIKey splits a raw "<key_id>:<secret>" header value.
func SplitAPIKey(raw string) (keyID, secret string, ok bool) {
	keyID, secret, ok = strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || keyID == "" || secret == "" {
		return "", "", false
	}
	return keyID, secret, true
}
