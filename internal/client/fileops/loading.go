package fileops

import (
	"maps"
	"sync"
)

// LoadingState tracks which entries have an operation in flight. It is
// advisory: the executor never refuses work on a busy key.
type LoadingState struct {
	mu   sync.Mutex
	busy map[string]bool
}

func NewLoadingState() *LoadingState {
	return &LoadingState{busy: make(map[string]bool)}
}

func (s *LoadingState) Busy(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[key]
}

func (s *LoadingState) Snapshot() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.busy)
}

func (s *LoadingState) start(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy[key] = true
}

func (s *LoadingState) done(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, key)
}
