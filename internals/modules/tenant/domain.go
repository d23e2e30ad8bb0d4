package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Tenant struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Config    map[string]any `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

func (t Tenant) OwnerTenantID() uuid.UUID { return t.ID }

// Record is the stored form of a tenant. ConfigBlob is sealed for the tenant
// and APIKeyHash is an argon2id hash of the key secret.
type Record struct {
	ID         uuid.UUID
	Name       string
	ConfigBlob string
	APIKeyHash string
	CreatedAt  time.Time
}

type Store interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, tenantID uuid.UUID) (Record, error)
	UpdateConfig(ctx context.Context, tenantID uuid.UUID, blob string) error
	UpdateAPIKeyHash(ctx context.Context, tenantID uuid.UUID, hash string) error
}
