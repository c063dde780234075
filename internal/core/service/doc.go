// Package service provides domain services for stockgate.
//
// Domain services contain the business rules of the request pipeline and
// define interfaces for their storage dependencies, allowing for dependency
// injection and testability.
//
// This package contains:
//
//   - TokenService: signed access/refresh token issuance, verification and refresh
//   - RateLimiter: fixed-window request counting against a shared CounterStore
//   - AuthService: password login, bearer and API key authentication, role checks
//
// Services are stateless apart from caches and are safe for concurrent use.
package service
