// Package storage opens the counter store selected by configuration.
//
// Two backends are available:
//
//   - memory: a sharded in-process map, swept for expired windows by a
//     background loop. Counts are per instance.
//   - redis: a shared Redis server. Every instance pointing at the same
//     server enforces one combined quota per client.
//
// The Engine owns the backend's lifecycle and exposes a health probe.
package storage
