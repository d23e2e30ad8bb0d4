package tenant

import (
	"context"
	"os"
	"testing"
	"time"

	"sentinel/internals/security"
	"sentinel/pkg/apperror"
	"sentinel/pkg/db"
	"sentinel/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPool connects to SENTINEL_TEST_DATABASE_URL and skips when it is unset
// or unreachable.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("SENTINEL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SENTINEL_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(pool.Close)

	// schema bootstrap is idempotent
	require.NoError(t, db.Migrate(ctx, pool))
	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

func TestRepositoryRoundTrip(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool, logger.Nop())
	ctx := context.Background()

	rec := Record{ID: security.NewUUID(), Name: "acme", ConfigBlob: "blob-1", APIKeyHash: "hash-1"}
	created, err := repo.Create(ctx, rec)
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM tenants WHERE id = $1`, rec.ID)
	})

	require.NoError(t, repo.UpdateConfig(ctx, rec.ID, "blob-2"))
	require.NoError(t, repo.UpdateAPIKeyHash(ctx, rec.ID, "hash-2"))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)
	assert.Equal(t, "blob-2", got.ConfigBlob)
	assert.Equal(t, "hash-2", got.APIKeyHash)
}

func TestRepositoryMissingTenant(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool, logger.Nop())
	ctx := context.Background()

	_, err := repo.Get(ctx, security.NewUUID())
	assert.True(t, apperror.IsKind(err, apperror.NotFound))

	err = repo.UpdateConfig(ctx, security.NewUUID(), "blob")
	assert.True(t, apperror.IsKind(err, apperror.NotFound))
}
