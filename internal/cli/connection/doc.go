// Package connection is stockgate-cli's HTTP client for the stockgate-server
// API. It attaches the configured credential, decodes JSON responses, and
// turns error bodies into *APIError values.
package connection
