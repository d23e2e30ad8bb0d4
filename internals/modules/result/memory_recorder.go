package result

import (
	"context"
	"sort"
	"sync"
	"time"

	"sentinel/internals/modules/probe"

	"github.com/google/uuid"
)

// MemoryRecorder keeps check results in process.
type MemoryRecorder struct {
	mu      sync.RWMutex
	results map[uuid.UUID][]probe.CheckResult
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{results: make(map[uuid.UUID][]probe.CheckResult)}
}

func (m *MemoryRecorder) Insert(_ context.Context, r probe.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.MonitorID] = append(m.results[r.MonitorID], r)
	return nil
}

func (m *MemoryRecorder) CountChecks(_ context.Context, monitorID uuid.UUID, since time.Time) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var successful, total int64
	for _, r := range m.results[monitorID] {
		if r.CheckedAt.Before(since) {
			continue
		}
		total++
		if r.Success {
			successful++
		}
	}
	return successful, total, nil
}

func (m *MemoryRecorder) ListRecent(_ context.Context, monitorID uuid.UUID, limit int32) ([]probe.CheckResult, error) {
	m.mu.RLock()
	out := append([]probe.CheckResult(nil), m.results[monitorID]...)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckedAt.After(out[j].CheckedAt) })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

// Len reports how many results were recorded for a monitor.
func (m *MemoryRecorder) Len(monitorID uuid.UUID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results[monitorID])
}
