package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sentinel/pkg/apperror"
	"sentinel/pkg/db"
	"sentinel/pkg/utils"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
)

const alertColumns = `id, tenant_id, monitor_id, type, triggered_at, resolved_at,
	consecutive_failures, message, notification_status`

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

func (r *Repository) Create(ctx context.Context, a Alert) error {
	return r.create(ctx, r.db, a)
}

func (r *Repository) create(ctx context.Context, q db.DBTX, a Alert) error {
	const op string = "repo.alert.create"

	status, err := json.Marshal(nonNilStatus(a.NotificationStatus))
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO alerts (id, tenant_id, monitor_id, type, triggered_at, resolved_at,
			consecutive_failures, message, notification_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)`,
		a.ID, a.TenantID, a.MonitorID, string(a.Type), a.TriggeredAt,
		utils.ToPgTimestamptzPtr(a.ResolvedAt), int32(a.ConsecutiveFailures), a.Message, string(status),
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	return nil
}

func (r *Repository) Resolve(ctx context.Context, alertID uuid.UUID, resolvedAt time.Time) error {
	return r.resolve(ctx, r.db, alertID, resolvedAt)
}

func (r *Repository) resolve(ctx context.Context, q db.DBTX, alertID uuid.UUID, resolvedAt time.Time) error {
	const op string = "repo.alert.resolve"

	_, err := q.Exec(ctx,
		`UPDATE alerts SET resolved_at = $2 WHERE id = $1 AND resolved_at IS NULL`,
		alertID, resolvedAt,
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	return nil
}

// ResolveAndRecover closes the open FAILURE and inserts its RECOVERY in one
// transaction; either both land or neither does.
func (r *Repository) ResolveAndRecover(ctx context.Context, failureID uuid.UUID, recovery Alert) error {
	const op string = "repo.alert.resolve_and_recover"

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := r.resolve(ctx, tx, failureID, recovery.TriggeredAt); err != nil {
			return err
		}
		return r.create(ctx, tx, recovery)
	})
	if err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return err
		}
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	return nil
}

// ActiveFailure returns the open FAILURE alert of a monitor, or nil.
func (r *Repository) ActiveFailure(ctx context.Context, monitorID uuid.UUID) (*Alert, error) {
	const op string = "repo.alert.active_failure"

	row := r.db.QueryRow(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE monitor_id = $1 AND type = $2 AND resolved_at IS NULL
		ORDER BY triggered_at DESC LIMIT 1`,
		monitorID, string(TypeFailure),
	)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	return &a, nil
}

func (r *Repository) ActiveByMonitor(ctx context.Context, monitorID uuid.UUID) ([]Alert, error) {
	const op string = "repo.alert.active_by_monitor"

	rows, err := r.db.Query(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE monitor_id = $1 AND resolved_at IS NULL
		ORDER BY triggered_at DESC`,
		monitorID,
	)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	out, err := collectAlerts(rows)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	return out, nil
}

// Load reads an alert without tenant filtering. Engine callers only.
func (r *Repository) Load(ctx context.Context, alertID uuid.UUID) (Alert, error) {
	const op string = "repo.alert.load"

	row := r.db.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, alertID)
	a, err := scanAlert(row)
	if err != nil {
		return Alert{}, utils.WrapRepoError(op, err, true, r.logger)
	}
	return a, nil
}

func (r *Repository) GetByID(ctx context.Context, tenantID, alertID uuid.UUID) (Alert, error) {
	const op string = "repo.alert.get"

	row := r.db.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = $1 AND tenant_id = $2`,
		alertID, tenantID,
	)
	a, err := scanAlert(row)
	if err != nil {
		return Alert{}, utils.WrapRepoError(op, err, true, r.logger)
	}
	return a, nil
}

func (r *Repository) List(ctx context.Context, q ListQuery) ([]Alert, error) {
	const op string = "repo.alert.list"

	// direction cannot be a bind parameter, so it comes from a fixed set
	direction := "DESC"
	if q.Order == OrderAsc {
		direction = "ASC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	sql := fmt.Sprintf(`
		SELECT `+alertColumns+` FROM alerts
		WHERE tenant_id = $1 AND ($2::uuid IS NULL OR monitor_id = $2)
		ORDER BY triggered_at %s, id
		LIMIT $3`, direction)

	rows, err := r.db.Query(ctx, sql, q.TenantID, q.MonitorID, int32(limit))
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	out, err := collectAlerts(rows)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	return out, nil
}

// SetNotificationStatus merges one channel's delivery status into the alert.
func (r *Repository) SetNotificationStatus(ctx context.Context, alertID uuid.UUID, channelID string, st DeliveryStatus) error {
	const op string = "repo.alert.set_notification_status"

	raw, err := json.Marshal(st)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE alerts
		SET notification_status = notification_status || jsonb_build_object($2::text, $3::jsonb)
		WHERE id = $1`,
		alertID, channelID, string(raw),
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	if tag.RowsAffected() == 0 {
		return utils.WrapRepoError(op, pgx.ErrNoRows, true, r.logger)
	}
	return nil
}

func scanAlert(row pgx.Row) (Alert, error) {
	var (
		a          Alert
		typ        string
		resolvedAt pgtype.Timestamptz
		failures   int32
		status     []byte
	)
	if err := row.Scan(
		&a.ID, &a.TenantID, &a.MonitorID, &typ, &a.TriggeredAt, &resolvedAt,
		&failures, &a.Message, &status,
	); err != nil {
		return Alert{}, err
	}
	a.Type = Type(typ)
	a.ResolvedAt = utils.FromPgTimestamptzPtr(resolvedAt)
	a.ConsecutiveFailures = int(failures)
	a.NotificationStatus = map[string]DeliveryStatus{}
	if len(status) > 0 {
		if err := json.Unmarshal(status, &a.NotificationStatus); err != nil {
			return Alert{}, fmt.Errorf("decode notification status: %w", err)
		}
	}
	return a, nil
}

func collectAlerts(rows pgx.Rows) ([]Alert, error) {
	defer rows.Close()

	out := make([]Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nonNilStatus(m map[string]DeliveryStatus) map[string]DeliveryStatus {
	if m == nil {
		return map[string]DeliveryStatus{}
	}
	return m
}
