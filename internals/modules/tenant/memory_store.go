package tenant

import (
	"context"
	"sync"
	"time"

	"sentinel/pkg/apperror"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[uuid.UUID]Record)}
}

func notFound(op string) error {
	return &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "tenant not found"}
}

func (s *MemoryStore) Create(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[rec.ID]; ok {
		return Record{}, &apperror.Error{Kind: apperror.AlreadyExists, Op: "repo.tenant_memory.create", Message: "tenant already exists"}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.tenants[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) Get(_ context.Context, tenantID uuid.UUID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tenants[tenantID]
	if !ok {
		return Record{}, notFound("repo.tenant_memory.get")
	}
	return rec, nil
}

func (s *MemoryStore) UpdateConfig(_ context.Context, tenantID uuid.UUID, blob string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tenants[tenantID]
	if !ok {
		return notFound("repo.tenant_memory.update_config")
	}
	rec.ConfigBlob = blob
	s.tenants[tenantID] = rec
	return nil
}

func (s *MemoryStore) UpdateAPIKeyHash(_ context.Context, tenantID uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tenants[tenantID]
	if !ok {
		return notFound("repo.tenant_memory.update_api_key_hash")
	}
	rec.APIKeyHash = hash
	s.tenants[tenantID] = rec
	return nil
}
