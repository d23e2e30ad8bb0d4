package probe

import (
	"context"
	"sync"
	"time"

	"sentinel/internals/modules/monitor"

	"github.com/google/uuid"
)

type cachedStatus struct {
	status    AggregatedStatus
	expiresAt time.Time
}

// MemoryStatusStore is the in-process StatusStore.
type MemoryStatusStore struct {
	mu         sync.RWMutex
	latest     map[uuid.UUID]map[monitor.Location]CheckResult
	aggregated map[uuid.UUID]cachedStatus
	now        func() time.Time
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{
		latest:     make(map[uuid.UUID]map[monitor.Location]CheckResult),
		aggregated: make(map[uuid.UUID]cachedStatus),
		now:        time.Now,
	}
}

func (s *MemoryStatusStore) SetLatest(_ context.Context, r CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byLoc, ok := s.latest[r.MonitorID]
	if !ok {
		byLoc = make(map[monitor.Location]CheckResult)
		s.latest[r.MonitorID] = byLoc
	}
	// keep the newest if two writers race
	if prev, ok := byLoc[r.Location]; ok && prev.CheckedAt.After(r.CheckedAt) {
		return nil
	}
	byLoc[r.Location] = r
	return nil
}

func (s *MemoryStatusStore) Latest(_ context.Context, monitorID uuid.UUID) (map[monitor.Location]CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[monitor.Location]CheckResult, len(s.latest[monitorID]))
	for loc, r := range s.latest[monitorID] {
		out[loc] = r
	}
	return out, nil
}

func (s *MemoryStatusStore) GetAggregated(_ context.Context, monitorID uuid.UUID) (AggregatedStatus, bool, error) {
	s.mu.RLock()
	c, ok := s.aggregated[monitorID]
	s.mu.RUnlock()

	if !ok || !s.now().Before(c.expiresAt) {
		return AggregatedStatus{}, false, nil
	}
	return c.status, true, nil
}

func (s *MemoryStatusStore) SetAggregated(_ context.Context, st AggregatedStatus, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregated[st.MonitorID] = cachedStatus{status: st, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStatusStore) InvalidateAggregated(_ context.Context, monitorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.aggregated, monitorID)
	return nil
}

func (s *MemoryStatusStore) Clear(_ context.Context, monitorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.latest, monitorID)
	delete(s.aggregated, monitorID)
	return nil
}
