// Package config defines the stockgate server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation, reported as ErrConfiguration
//   - sanitize.go: a copy safe to log or print
//   - convert.go: mapping onto service and storage configs
//
// Configuration is loaded once at start via internal/infra/confloader and is
// treated as immutable afterwards.
package config
