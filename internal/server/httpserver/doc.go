// Package httpserver provides the stockgate HTTP/HTTPS server.
//
// Endpoints:
//
//   - Auth: /api/v1/auth/login, /token, /refresh, /me, /logout
//   - Tokens: /api/v1/tokens/verify
//   - Admin: /api/v1/admin/ratelimit, /api/v1/admin/keys
//   - Health: /health, /ready, /metrics
//
// Features:
//
//   - TLS with automatic certificate reload
//   - Per-route middleware chain: Trace, Metrics, Audit, RateLimit,
//     Authenticate, RequireRoles
//   - Fixed-window rate limiting ahead of authentication
//   - Graceful shutdown with a configurable timeout
package httpserver
