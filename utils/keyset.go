package utils

// KeySet tracks which keys have been seen.
type KeySet[K comparable] struct {
	seen map[K]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet[K comparable]() *KeySet[K] {
	return &KeySet[K]{seen: make(map[K]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet[K]) Add(key K) bool {
	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the key has already been added.
func (s *KeySet[K]) Contains(key K) bool {
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of distinct keys tracked.
func (s *KeySet[K]) Size() int {
	return len(s.seen)
}
