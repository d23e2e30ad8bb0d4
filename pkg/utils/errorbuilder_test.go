package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"sentinel/pkg/apperror"
	"sentinel/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapRepoErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
		want     apperror.Kind
	}{
		{"duplicate primary key", &pgconn.PgError{Code: "23505", ConstraintName: "alerts_pkey"}, false, apperror.AlreadyExists},
		{"second open failure", &pgconn.PgError{Code: "23505", ConstraintName: "idx_alerts_one_open_failure"}, false, apperror.Conflict},
		{"monitor for missing tenant", &pgconn.PgError{Code: "23503", ConstraintName: "monitors_tenant_id_fkey"}, false, apperror.NotFound},
		{"interval outside the allowed set", &pgconn.PgError{Code: "23514", ConstraintName: "monitors_interval_sec_check"}, false, apperror.InvalidInput},
		{"missing column value", &pgconn.PgError{Code: "23502"}, false, apperror.InvalidInput},
		{"malformed uuid text", &pgconn.PgError{Code: "22P02"}, false, apperror.InvalidInput},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, false, apperror.DatabaseErr},
		{"wrapped pg error", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), false, apperror.Conflict},
		{"no rows where a row may be absent", pgx.ErrNoRows, true, apperror.NotFound},
		{"no rows where a row must exist", pgx.ErrNoRows, false, apperror.Internal},
		{"cancelled", context.Canceled, true, apperror.RequestTimeout},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), false, apperror.RequestTimeout},
		{"anything else", errors.New("conn reset"), false, apperror.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapRepoError("repo.test.op", tt.err, tt.notFound, logger.Nop())

			var appErr *apperror.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.want, appErr.Kind)
			assert.Equal(t, "repo.test.op", appErr.Op)
		})
	}
}

func TestWrapRepoErrorKeepsPgCause(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503", ConstraintName: "alerts_monitor_id_fkey"}
	err := WrapRepoError("repo.alert.create", pgErr, false, logger.Nop())

	var got *pgconn.PgError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "alerts_monitor_id_fkey", got.ConstraintName)
}
