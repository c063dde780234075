// Package main provides the entry point for stockgate-cli.
//
// The CLI works offline against a server configuration file (issuing and
// verifying tokens, hashing passwords, generating API keys, probing the
// counter store) and online against a running server (health, API key
// administration, rate limit policy).
//
// Usage:
//
//	stockgate-cli [global flags] command [flags] [args]
//	stockgate-cli -c config.yaml token issue --subject alice --role user
//	stockgate-cli -s https://gate.internal -K sgak-...:secret apikey list
package main
