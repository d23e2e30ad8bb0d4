package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"sentinel/pkg/apperror"

	"github.com/google/uuid"
)

// MemoryChannelStore keeps channels in process.
type MemoryChannelStore struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]Channel
	now      func() time.Time
}

func NewMemoryChannelStore() *MemoryChannelStore {
	return &MemoryChannelStore{channels: make(map[uuid.UUID]Channel), now: time.Now}
}

func channelNotFound(op string) error {
	return &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "channel not found"}
}

func (s *MemoryChannelStore) Create(_ context.Context, ch Channel) (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = s.now()
	}
	s.channels[ch.ID] = ch
	return ch, nil
}

func (s *MemoryChannelStore) Get(_ context.Context, tenantID, channelID uuid.UUID) (Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.channels[channelID]
	if !ok || ch.TenantID != tenantID {
		return Channel{}, channelNotFound("repo.channel_memory.get")
	}
	return ch, nil
}

func (s *MemoryChannelStore) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Channel, 0)
	for _, ch := range s.channels {
		if ch.TenantID == tenantID {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryChannelStore) SetEnabled(_ context.Context, tenantID, channelID uuid.UUID, enabled bool) (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok || ch.TenantID != tenantID {
		return Channel{}, channelNotFound("repo.channel_memory.set_enabled")
	}
	ch.Enabled = enabled
	s.channels[channelID] = ch
	return ch, nil
}

func (s *MemoryChannelStore) Delete(_ context.Context, tenantID, channelID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok || ch.TenantID != tenantID {
		return channelNotFound("repo.channel_memory.delete")
	}
	delete(s.channels, channelID)
	return nil
}

// MemoryDeliveryStore keeps delivery history in process.
type MemoryDeliveryStore struct {
	mu      sync.RWMutex
	records []DeliveryRecord
}

func NewMemoryDeliveryStore() *MemoryDeliveryStore {
	return &MemoryDeliveryStore{}
}

func (s *MemoryDeliveryStore) Record(_ context.Context, rec DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryDeliveryStore) ListByAlert(_ context.Context, tenantID, alertID uuid.UUID) ([]DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DeliveryRecord, 0)
	for _, r := range s.records {
		if r.TenantID == tenantID && r.AlertID == alertID {
			out = append(out, r)
		}
	}
	return out, nil
}
