// Package memory provides in-process storage for stockgate.
//
// CounterStore keeps rate limit counters in a sharded concurrent map. It is
// exact within one process but not shared between instances; deployments
// with more than one instance should use the redis store instead.
//
// Directory holds the configured user accounts and API keys.
package memory
