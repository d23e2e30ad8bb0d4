package monitor

import (
	"context"
	"sentinel/pkg/db"
	"sentinel/pkg/utils"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const monitorColumns = `id, tenant_id, name, url, interval_sec, timeout_ms, expected_status_codes,
	locations, failure_threshold, enabled, created_at, updated_at`

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

func (r *Repository) Create(ctx context.Context, cmd CreateMonitorCmd) (Monitor, error) {
	const op = "repo.monitor.create"

	row := r.db.QueryRow(ctx, `
		INSERT INTO monitors (id, tenant_id, name, url, interval_sec, timeout_ms,
			expected_status_codes, locations, failure_threshold, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
		RETURNING `+monitorColumns,
		uuid.New(), cmd.TenantID, cmd.Name, cmd.URL,
		int32(cmd.Interval/time.Second), int32(cmd.Timeout/time.Millisecond),
		toInt32s(cmd.ExpectedStatusCodes), fromLocations(cmd.Locations), int32(cmd.FailureThreshold),
	)
	m, err := scanMonitor(row)
	if err != nil {
		return Monitor{}, utils.WrapRepoError(op, err, false, r.logger)
	}
	return m, nil
}

// GetByID is the engine-side lookup; it does not filter by tenant.
func (r *Repository) GetByID(ctx context.Context, monitorID uuid.UUID) (Monitor, error) {
	const op = "repo.monitor.get_by_id"

	row := r.db.QueryRow(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = $1`, monitorID)
	m, err := scanMonitor(row)
	if err != nil {
		return Monitor{}, utils.WrapRepoError(op, err, true, r.logger)
	}
	return m, nil
}

func (r *Repository) Get(ctx context.Context, tenantID, monitorID uuid.UUID) (Monitor, error) {
	const op = "repo.monitor.get"

	row := r.db.QueryRow(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE id = $1 AND tenant_id = $2`,
		monitorID, tenantID,
	)
	m, err := scanMonitor(row)
	if err != nil {
		return Monitor{}, utils.WrapRepoError(op, err, true, r.logger)
	}
	return m, nil
}

func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int32) ([]Monitor, error) {
	const op = "repo.monitor.list_by_tenant"

	rows, err := r.db.Query(ctx, `
		SELECT `+monitorColumns+` FROM monitors
		WHERE tenant_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	out, err := collectMonitors(rows)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	return out, nil
}

func (r *Repository) ListEnabled(ctx context.Context) ([]Monitor, error) {
	const op = "repo.monitor.list_enabled"

	rows, err := r.db.Query(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE enabled ORDER BY created_at, id`)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	out, err := collectMonitors(rows)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	return out, nil
}

func (r *Repository) Update(ctx context.Context, tenantID, monitorID uuid.UUID, cmd UpdateMonitorCmd) (Monitor, error) {
	const op = "repo.monitor.update"

	row := r.db.QueryRow(ctx, `
		UPDATE monitors SET
			name = $3, url = $4, interval_sec = $5, timeout_ms = $6,
			expected_status_codes = $7, locations = $8, failure_threshold = $9,
			enabled = $10, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+monitorColumns,
		monitorID, tenantID, cmd.Name, cmd.URL,
		int32(cmd.Interval/time.Second), int32(cmd.Timeout/time.Millisecond),
		toInt32s(cmd.ExpectedStatusCodes), fromLocations(cmd.Locations), int32(cmd.FailureThreshold),
		cmd.Enabled,
	)
	m, err := scanMonitor(row)
	if err != nil {
		return Monitor{}, utils.WrapRepoError(op, err, true, r.logger)
	}
	return m, nil
}

func (r *Repository) Delete(ctx context.Context, tenantID, monitorID uuid.UUID) error {
	const op = "repo.monitor.delete"

	tag, err := r.db.Exec(ctx, `DELETE FROM monitors WHERE id = $1 AND tenant_id = $2`, monitorID, tenantID)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	if tag.RowsAffected() == 0 {
		return utils.WrapRepoError(op, pgx.ErrNoRows, true, r.logger)
	}
	return nil
}

func scanMonitor(row pgx.Row) (Monitor, error) {
	var (
		m           Monitor
		intervalSec int32
		timeoutMs   int32
		codes       []int32
		locs        []string
		threshold   int32
	)
	if err := row.Scan(
		&m.ID, &m.TenantID, &m.Name, &m.URL, &intervalSec, &timeoutMs, &codes,
		&locs, &threshold, &m.Enabled, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return Monitor{}, err
	}
	m.Interval = time.Duration(intervalSec) * time.Second
	m.Timeout = time.Duration(timeoutMs) * time.Millisecond
	m.ExpectedStatusCodes = make([]int, 0, len(codes))
	for _, c := range codes {
		m.ExpectedStatusCodes = append(m.ExpectedStatusCodes, int(c))
	}
	m.Locations = toLocations(locs)
	m.FailureThreshold = int(threshold)
	return m, nil
}

func collectMonitors(rows pgx.Rows) ([]Monitor, error) {
	defer rows.Close()

	out := make([]Monitor, 0)
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func toInt32s(in []int) []int32 {
	out := make([]int32, 0, len(in))
	for _, v := range in {
		out = append(out, int32(v))
	}
	return out
}

func fromLocations(in []Location) []string {
	out := make([]string, 0, len(in))
	for _, l := range in {
		out = append(out, string(l))
	}
	return out
}
