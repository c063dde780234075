package cmap

// Update atomically replaces the value of key with fn(current, exists) and
// returns the stored result. fn runs under the shard lock and must not call
// back into the map.
func (m *Map[K, V]) Update(key K, fn func(value V, exists bool) V) V {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.items[key]
	newValue := fn(existing, exists)
	s.items[key] = newValue
	return newValue
}

// Range iterates over all key-value pairs until fn returns false.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// RemoveIf deletes every entry for which pred returns true and reports how
// many were removed. Each shard is write-locked while it is scanned.
func (m *Map[K, V]) RemoveIf(pred func(key K, value V) bool) int {
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, v := range s.items {
			if pred(k, v) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Keys returns all keys.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Count())
	m.Range(func(key K, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}
