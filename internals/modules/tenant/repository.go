package tenant

import (
	"context"

	"sentinel/pkg/db"
	"sentinel/pkg/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Repository struct {
	db     db.DBTX
	logger *zerolog.Logger
}

func NewRepository(dbExecutor db.DBTX, logger *zerolog.Logger) *Repository {
	return &Repository{
		db:     dbExecutor,
		logger: logger,
	}
}

func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	const op = "repo.tenant.create"

	err := r.db.QueryRow(ctx, `
		INSERT INTO tenants (id, name, config_blob, api_key_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		rec.ID, rec.Name, rec.ConfigBlob, rec.APIKeyHash,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return Record{}, utils.WrapRepoError(op, err, false, r.logger)
	}
	return rec, nil
}

func (r *Repository) Get(ctx context.Context, tenantID uuid.UUID) (Record, error) {
	const op = "repo.tenant.get"

	var rec Record
	err := r.db.QueryRow(ctx,
		`SELECT id, name, config_blob, api_key_hash, created_at FROM tenants WHERE id = $1`,
		tenantID,
	).Scan(&rec.ID, &rec.Name, &rec.ConfigBlob, &rec.APIKeyHash, &rec.CreatedAt)
	if err != nil {
		return Record{}, utils.WrapRepoError(op, err, true, r.logger)
	}
	return rec, nil
}

func (r *Repository) UpdateConfig(ctx context.Context, tenantID uuid.UUID, blob string) error {
	return r.exec(ctx, "repo.tenant.update_config",
		`UPDATE tenants SET config_blob = $2 WHERE id = $1`, tenantID, blob)
}

func (r *Repository) UpdateAPIKeyHash(ctx context.Context, tenantID uuid.UUID, hash string) error {
	return r.exec(ctx, "repo.tenant.update_api_key_hash",
		`UPDATE tenants SET api_key_hash = $2 WHERE id = $1`, tenantID, hash)
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	if tag.RowsAffected() == 0 {
		return notFound(op)
	}
	return nil
}
