// Package cmap provides a concurrent map split into independently locked
// shards.
//
// Writes to keys in different shards never contend. Update runs its
// callback under the shard lock, which makes read-modify-write sequences
// such as counter increments atomic per key:
//
//	m := cmap.New[string, int64]()
//	n := m.Update("k", func(v int64, _ bool) int64 { return v + 1 })
//
// Range and RemoveIf visit shards one at a time, so they observe a
// per-shard rather than a global snapshot.
package cmap
