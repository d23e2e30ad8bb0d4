package result

import (
	"context"
	"sentinel/internals/modules/monitor"
	"sentinel/internals/modules/probe"
	"sentinel/pkg/db"
	"sentinel/pkg/utils"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
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

func (r *Repository) Insert(ctx context.Context, res probe.CheckResult) error {
	const op string = "repo.check_result.insert"

	var (
		issuer, subject pgtype.Text
		expiresAt       pgtype.Timestamptz
	)
	if res.TLS != nil {
		issuer = utils.ToPgText(res.TLS.Issuer)
		subject = utils.ToPgText(res.TLS.Subject)
		expiresAt = utils.ToPgTimestamptz(res.TLS.ExpiresAt)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO check_results (id, monitor_id, location, checked_at, success,
			response_time_ms, status_code, error_message, tls_issuer, tls_subject, tls_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		res.ID, res.MonitorID, string(res.Location), res.CheckedAt, res.Success,
		utils.ToPgInt8(res.ResponseTimeMs), utils.ToPgInt4(res.StatusCode), utils.ToPgText(res.ErrorMessage),
		issuer, subject, expiresAt,
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	return nil
}

func (r *Repository) CountChecks(ctx context.Context, monitorID uuid.UUID, since time.Time) (int64, int64, error) {
	const op string = "repo.check_result.count"

	var successful, total int64
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE success), count(*)
		FROM check_results
		WHERE monitor_id = $1 AND checked_at >= $2`,
		monitorID, since,
	).Scan(&successful, &total)
	if err != nil {
		return 0, 0, utils.WrapRepoError(op, err, false, r.logger)
	}
	return successful, total, nil
}

func (r *Repository) ListRecent(ctx context.Context, monitorID uuid.UUID, limit int32) ([]probe.CheckResult, error) {
	const op string = "repo.check_result.list_recent"

	rows, err := r.db.Query(ctx, `
		SELECT id, monitor_id, location, checked_at, success, response_time_ms, status_code,
			error_message, tls_issuer, tls_subject, tls_expires_at
		FROM check_results
		WHERE monitor_id = $1
		ORDER BY checked_at DESC
		LIMIT $2`,
		monitorID, limit,
	)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	defer rows.Close()

	out := make([]probe.CheckResult, 0)
	for rows.Next() {
		var (
			res              probe.CheckResult
			location         string
			responseTime     pgtype.Int8
			statusCode       pgtype.Int4
			errMsg, iss, sub pgtype.Text
			tlsExpiry        pgtype.Timestamptz
		)
		if err := rows.Scan(&res.ID, &res.MonitorID, &location, &res.CheckedAt, &res.Success,
			&responseTime, &statusCode, &errMsg, &iss, &sub, &tlsExpiry); err != nil {
			return nil, utils.WrapRepoError(op, err, false, r.logger)
		}
		res.Location = monitor.Location(location)
		res.ResponseTimeMs = utils.FromPgInt8(responseTime)
		res.StatusCode = utils.FromPgInt4(statusCode)
		res.ErrorMessage = utils.FromPgText(errMsg)
		if tlsExpiry.Valid {
			res.TLS = &probe.TLSInfo{
				Issuer:          utils.FromPgText(iss),
				Subject:         utils.FromPgText(sub),
				ExpiresAt:       tlsExpiry.Time,
				DaysUntilExpiry: probe.DaysUntilExpiry(tlsExpiry.Time, res.CheckedAt),
			}
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	return out, nil
}
