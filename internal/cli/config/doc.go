// Package config holds stockgate-cli's local settings (~/.stockgate/cli.yaml):
// the default output format and named server profiles.
package config
