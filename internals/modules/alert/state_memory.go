package alert

import (
	"context"
	"sync"

	"sentinel/pkg/apperror"

	"github.com/google/uuid"
)

// MemoryStateStore keeps alert state in process.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[uuid.UUID]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[uuid.UUID]State)}
}

func (s *MemoryStateStore) Get(_ context.Context, monitorID uuid.UUID) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[monitorID].clone(), nil
}

func (s *MemoryStateStore) Put(_ context.Context, monitorID uuid.UUID, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur := s.states[monitorID]; cur.Revision != st.Revision {
		return &apperror.Error{Kind: apperror.Conflict, Op: "repo.alert_state_memory.put", Message: "alert state changed since it was read"}
	}
	next := st.clone()
	next.Revision++
	s.states[monitorID] = next
	return nil
}

func (s *MemoryStateStore) Delete(_ context.Context, monitorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, monitorID)
	return nil
}
