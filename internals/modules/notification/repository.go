package notification

import (
	"context"
	"sentinel/internals/security"
	"sentinel/pkg/apperror"
	"sentinel/pkg/db"
	"sentinel/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ChannelRepository stores channel configs sealed with the owning tenant's
// cipher view, so a blob copied across tenants never decrypts.
type ChannelRepository struct {
	db     db.DBTX
	cipher *security.Cipher
	logger *zerolog.Logger
}

func NewChannelRepository(dbExecutor db.DBTX, cipher *security.Cipher, logger *zerolog.Logger) *ChannelRepository {
	return &ChannelRepository{
		db:     dbExecutor,
		cipher: cipher,
		logger: logger,
	}
}

const channelColumns = `id, tenant_id, name, type, config_blob, enabled, created_at`

func (r *ChannelRepository) Create(ctx context.Context, ch Channel) (Channel, error) {
	const op string = "repo.channel.create"

	blob, err := r.cipher.ForTenant(ch.TenantID).EncryptObject(ch.Config)
	if err != nil {
		return Channel{}, err
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO notification_channels (id, tenant_id, name, type, config_blob, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+channelColumns,
		ch.ID, ch.TenantID, ch.Name, string(ch.Type), blob, ch.Enabled,
	)
	out, err := r.scanChannel(row)
	if err != nil {
		return Channel{}, r.wrap(op, err, false)
	}
	return out, nil
}

func (r *ChannelRepository) Get(ctx context.Context, tenantID, channelID uuid.UUID) (Channel, error) {
	const op string = "repo.channel.get"

	row := r.db.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM notification_channels WHERE id = $1 AND tenant_id = $2`,
		channelID, tenantID,
	)
	ch, err := r.scanChannel(row)
	if err != nil {
		return Channel{}, r.wrap(op, err, true)
	}
	return ch, nil
}

func (r *ChannelRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Channel, error) {
	const op string = "repo.channel.list_by_tenant"

	rows, err := r.db.Query(ctx,
		`SELECT `+channelColumns+` FROM notification_channels WHERE tenant_id = $1 ORDER BY created_at, id`,
		tenantID,
	)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	defer rows.Close()

	out := make([]Channel, 0)
	for rows.Next() {
		ch, err := r.scanChannel(rows)
		if err != nil {
			return nil, r.wrap(op, err, false)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	return out, nil
}

func (r *ChannelRepository) SetEnabled(ctx context.Context, tenantID, channelID uuid.UUID, enabled bool) (Channel, error) {
	const op string = "repo.channel.set_enabled"

	row := r.db.QueryRow(ctx, `
		UPDATE notification_channels SET enabled = $3
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+channelColumns,
		channelID, tenantID, enabled,
	)
	ch, err := r.scanChannel(row)
	if err != nil {
		return Channel{}, r.wrap(op, err, true)
	}
	return ch, nil
}

func (r *ChannelRepository) Delete(ctx context.Context, tenantID, channelID uuid.UUID) error {
	const op string = "repo.channel.delete"

	tag, err := r.db.Exec(ctx,
		`DELETE FROM notification_channels WHERE id = $1 AND tenant_id = $2`,
		channelID, tenantID,
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	if tag.RowsAffected() == 0 {
		return &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "channel not found"}
	}
	return nil
}

func (r *ChannelRepository) scanChannel(row pgx.Row) (Channel, error) {
	var (
		ch   Channel
		typ  string
		blob string
	)
	if err := row.Scan(&ch.ID, &ch.TenantID, &ch.Name, &typ, &blob, &ch.Enabled, &ch.CreatedAt); err != nil {
		return Channel{}, err
	}
	ch.Type = ChannelType(typ)

	cfg, err := newConfig(ch.Type)
	if err != nil {
		return Channel{}, apperror.New(apperror.Integrity, "repo.channel.decode", err)
	}
	if err := r.cipher.ForTenant(ch.TenantID).DecryptObject(blob, cfg); err != nil {
		return Channel{}, err
	}
	ch.Config = deref(cfg)
	return ch, nil
}

// wrap keeps apperrors raised while decoding and maps driver errors.
func (r *ChannelRepository) wrap(op string, err error, notFoundPossible bool) error {
	if _, ok := err.(*apperror.Error); ok {
		return err
	}
	return utils.WrapRepoError(op, err, notFoundPossible, r.logger)
}

type DeliveryRepository struct {
	db     db.DBTX
	logger *zerolog.Logger
}

func NewDeliveryRepository(dbExecutor db.DBTX, logger *zerolog.Logger) *DeliveryRepository {
	return &DeliveryRepository{
		db:     dbExecutor,
		logger: logger,
	}
}

func (r *DeliveryRepository) Record(ctx context.Context, rec DeliveryRecord) error {
	const op string = "repo.delivery.record"

	_, err := r.db.Exec(ctx, `
		INSERT INTO notification_deliveries (id, tenant_id, alert_id, channel_id, attempt,
			success, terminal, error_message, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.TenantID, rec.AlertID, rec.ChannelID, int32(rec.Attempt),
		rec.Success, rec.Terminal, rec.ErrorMessage, rec.AttemptedAt,
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	return nil
}

func (r *DeliveryRepository) ListByAlert(ctx context.Context, tenantID, alertID uuid.UUID) ([]DeliveryRecord, error) {
	const op string = "repo.delivery.list_by_alert"

	rows, err := r.db.Query(ctx, `
		SELECT id, tenant_id, alert_id, channel_id, attempt, success, terminal, error_message, attempted_at
		FROM notification_deliveries
		WHERE tenant_id = $1 AND alert_id = $2
		ORDER BY attempted_at, attempt`,
		tenantID, alertID,
	)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	defer rows.Close()

	out := make([]DeliveryRecord, 0)
	for rows.Next() {
		var (
			rec     DeliveryRecord
			attempt int32
		)
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.AlertID, &rec.ChannelID, &attempt,
			&rec.Success, &rec.Terminal, &rec.ErrorMessage, &rec.AttemptedAt); err != nil {
			return nil, utils.WrapRepoError(op, err, false, r.logger)
		}
		rec.Attempt = int(attempt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	return out, nil
}
