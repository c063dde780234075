// Package domain defines the core domain models for stockgate.
//
// Domain models are pure values without IO dependencies or framework
// coupling. This package contains:
//
//   - Claims and TokenPair: the payload and result of token issuance
//   - User and APIKey: credentials with argon2id secret hashes
//   - Principal: the authenticated caller attached to a request
//   - Decision: the outcome of a rate limit check
//   - DomainError: coded errors mapped to HTTP status by the transport
package domain
