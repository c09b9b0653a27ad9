// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package postgres implements the accessctl repositories on PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DB abstracts query execution so repositories accept both *pgxpool.Pool and
// pgxmock pools in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BeginDB additionally starts transactions; the Transactor needs it.
type BeginDB interface {
	DB
	Begin(ctx context.Context) (pgx.Tx, error)
}

// txKey is the context key holding the active pgx.Tx.
type txKey struct{}

// dbFromCtx returns the transaction stored in ctx by the Transactor, or the
// fallback. Repository methods route every statement through this so they
// participate in the caller's transaction when one is open.
func dbFromCtx(ctx context.Context, fallback DB) DB {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}

// ulidToStringPtr converts a ULID pointer to a string pointer for SQL
// parameters. Returns nil for nil input.
func ulidToStringPtr(id *ulid.ULID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// parseOptionalULID parses an optional ULID string pointer. Returns nil for
// nil input and wraps parse errors with the field name.
func parseOptionalULID(strPtr *string, fieldName string) (*ulid.ULID, error) {
	if strPtr == nil {
		return nil, nil
	}
	id, err := ulid.Parse(*strPtr)
	if err != nil {
		return nil, oops.With("operation", "parse "+fieldName).With(fieldName, *strPtr).Wrap(err)
	}
	return &id, nil
}

// normalizeTimePtr converts a zero time pointer into nil so SQL NULL handling
// stays consistent across write paths.
func normalizeTimePtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	return t
}
