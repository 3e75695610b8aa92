package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/studypal/studypal/internal/state"
)

// MemoryStore is an in-process Store for tests and ephemeral runs.
// States are deep-copied on both Save and Load so callers can never
// mutate a stored checkpoint through an aliased pointer.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*state.State
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*state.State)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, threadID string) (*state.State, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread ID is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, threadID string, st *state.State) error {
	if threadID == "" {
		return fmt.Errorf("thread ID is required")
	}
	if st == nil {
		return fmt.Errorf("state is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[threadID] = st.Clone()
	return nil
}

// Len reports the number of stored checkpoints.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
