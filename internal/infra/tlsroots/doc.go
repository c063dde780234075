// Package tlsroots builds TLS configurations for stockgate.
//
//   - roots.go: CA pools and the client config used to reach Redis over TLS
//   - watcher.go: the HTTPS serving certificate, reloaded when its files
//     change on disk
package tlsroots
