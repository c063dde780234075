// Package token generates random secrets and derives stable digests of them.
//
// Secrets are Base64 RawURL encoded output of crypto/rand. Digests are
// hex-encoded SHA-256, suitable as cache keys or for safe logging; they are
// not a substitute for password hashing.
package token
