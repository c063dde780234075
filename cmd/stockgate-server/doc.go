// Package main provides the entry point for stockgate-server.
//
// The server fronts a set of HTTP endpoints with a fixed-window rate limiter
// and JWT / API key authentication:
//
//   - token issue, refresh and introspection under /api/v1
//   - API key administration for admin principals
//   - /health, /ready and an optional Prometheus /metrics endpoint
//
// Usage:
//
//	stockgate-server [flags]
//	stockgate-server -config /etc/stockgate/config.yaml -env-file .env
//
// Every configuration key can be overridden from the environment with the
// STOCKGATE_ prefix, using "__" between sections (STOCKGATE_AUTH__SECRET).
package main
