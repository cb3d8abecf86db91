package utils

import (
	"math/rand"
	"sync"
)

// NewLockedRand returns a seeded *rand.Rand that is safe for concurrent
// use. The top-level math/rand functions are already safe but share one
// process-wide stream; a locked instance keeps a seeded stream private
// to its owner.
func NewLockedRand(seed int64) *rand.Rand {
	return rand.New(&lockedSource{src: rand.NewSource(seed).(rand.Source64)})
}

// lockedSource serializes access to an underlying source, the same way
// math/rand guards its global stream.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}
