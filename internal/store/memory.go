package store

import (
	"context"
	"sync"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
)

// Memory is an in-process StateStore. Load and Save copy the state so callers
// never share history slices with the store.
type Memory struct {
	mu     sync.RWMutex
	states map[string]*credibility.State
}

func NewMemory() *Memory {
	return &Memory{states: make(map[string]*credibility.State)}
}

func (s *Memory) Close() error { return nil }

func (s *Memory) Load(_ context.Context, userID string) (*credibility.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

func (s *Memory) Save(_ context.Context, userID string, st *credibility.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[userID] = st.Clone()
	return nil
}
