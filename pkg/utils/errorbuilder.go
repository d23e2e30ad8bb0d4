package utils

import (
	"context"
	"errors"
	"strings"

	"sentinel/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// postgres SQLSTATE codes the repositories can hit from caller input
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
)

// WrapRepoError turns a pgx error into an apperror. Constraint violations keep
// their meaning: a duplicate primary key is AlreadyExists, any other unique
// index (one open FAILURE per monitor) is Conflict, a dangling reference is
// NotFound. Everything else is logged and reported as a database error.
func WrapRepoError(op string, err error, isNotFoundErrPossible bool, log *zerolog.Logger) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &apperror.Error{
			Kind:    apperror.RequestTimeout,
			Op:      op,
			Message: "request cancelled or timed out",
		}
	}

	if isNotFoundErrPossible && errors.Is(err, pgx.ErrNoRows) {
		return &apperror.Error{
			Kind:    apperror.NotFound,
			Op:      op,
			Message: "resources not found",
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if appErr := classifyPgError(op, pgErr); appErr != nil {
			return appErr
		}

		log.Error().
			Str("op", op).
			Str("pg_code", pgErr.Code).
			Str("pg_constraint", pgErr.ConstraintName).
			Str("pg_table", pgErr.TableName).
			Str("pg_detail", pgErr.Detail).
			Err(err).
			Msg("postgres database error")

		return &apperror.Error{
			Kind:    apperror.DatabaseErr,
			Op:      op,
			Message: "internal server error",
			Err:     err,
		}
	}

	return &apperror.Error{
		Kind:    apperror.Internal,
		Op:      op,
		Message: "internal server error",
		Err:     err,
	}
}

func classifyPgError(op string, pgErr *pgconn.PgError) *apperror.Error {
	switch pgErr.Code {
	case pgUniqueViolation:
		if strings.HasSuffix(pgErr.ConstraintName, "_pkey") {
			return &apperror.Error{Kind: apperror.AlreadyExists, Op: op, Message: "resource already exists", Err: pgErr}
		}
		return &apperror.Error{Kind: apperror.Conflict, Op: op, Message: "conflicts with an existing resource", Err: pgErr}
	case pgForeignKeyViolation:
		return &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "referenced resource not found", Err: pgErr}
	case pgNotNullViolation, pgCheckViolation, pgInvalidText:
		return &apperror.Error{Kind: apperror.InvalidInput, Op: op, Message: "value rejected by the database", Err: pgErr}
	}
	return nil
}
