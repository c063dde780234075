// Package command defines the stockgate-cli commands.
//
// Commands fall into two groups. Local commands (token, hash, config,
// ratelimit probe, apikey create) read the server configuration file and
// work without a running server. Remote commands (status, apikey list,
// ratelimit policy, token login) call the stockgate-server HTTP API using
// the selected profile or the --server and credential flags.
package command
