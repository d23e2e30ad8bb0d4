package monitor

import (
	"context"

	"github.com/google/uuid"
)

// Cache holds monitor definitions for the hot path of each check.
type Cache interface {
	GetMonitor(ctx context.Context, id uuid.UUID) (Monitor, bool)
	SetMonitor(ctx context.Context, m Monitor) error
	DelMonitor(ctx context.Context, id uuid.UUID) error
}

// NoopCache always misses. Used when the fast store runs in memory.
type NoopCache struct{}

func (NoopCache) GetMonitor(context.Context, uuid.UUID) (Monitor, bool) { return Monitor{}, false }
func (NoopCache) SetMonitor(context.Context, Monitor) error            { return nil }
func (NoopCache) DelMonitor(context.Context, uuid.UUID) error          { return nil }
