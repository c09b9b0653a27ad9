// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/accessctl"
)

// StatusRepository implements accessctl.StatusRepository using PostgreSQL.
type StatusRepository struct {
	db DB
}

// NewStatusRepository creates a new StatusRepository.
func NewStatusRepository(db DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// Get retrieves the access status for a resource. A missing row returns
// accessctl.ErrNotFound; callers translate that into the free default.
// A malformed stored level is logged and scanned as forbidden, never an error.
func (r *StatusRepository) Get(ctx context.Context, resourceID ulid.ULID) (*accessctl.Status, error) {
	row := dbFromCtx(ctx, r.db).QueryRow(ctx, `
		SELECT resource_id, level, embargo_start, embargo_end, created_at, updated_at
		FROM access_statuses WHERE resource_id = $1
	`, resourceID.String())

	st, err := scanStatusRow(ctx, row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("STATUS_NOT_FOUND").With("resource_id", resourceID.String()).Wrap(accessctl.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STATUS_GET_FAILED").With("resource_id", resourceID.String()).Wrap(err)
	}
	return st, nil
}

// Set upserts the status for a resource. Timestamps are stamped here, never
// by the caller. A resource unknown to the host signals NotFound via the
// foreign key rather than creating an orphan row.
func (r *StatusRepository) Set(ctx context.Context, status *accessctl.Status) error {
	_, err := dbFromCtx(ctx, r.db).Exec(ctx, `
		INSERT INTO access_statuses (resource_id, level, embargo_start, embargo_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (resource_id) DO UPDATE
		SET level = EXCLUDED.level,
		    embargo_start = EXCLUDED.embargo_start,
		    embargo_end = EXCLUDED.embargo_end,
		    updated_at = now()
	`, status.ResourceID.String(), status.Level.String(),
		normalizeTimePtr(status.EmbargoStart), normalizeTimePtr(status.EmbargoEnd))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return oops.Code("STATUS_RESOURCE_UNKNOWN").
				With("resource_id", status.ResourceID.String()).
				Wrap(accessctl.ErrNotFound)
		}
		return oops.Code("STATUS_SET_FAILED").With("resource_id", status.ResourceID.String()).Wrap(err)
	}
	return nil
}

// Delete removes the status row for a resource. Deleting a resource with no
// row is not an error; the row cascades away with the resource anyway.
func (r *StatusRepository) Delete(ctx context.Context, resourceID ulid.ULID) error {
	_, err := dbFromCtx(ctx, r.db).Exec(ctx,
		`DELETE FROM access_statuses WHERE resource_id = $1`, resourceID.String())
	if err != nil {
		return oops.Code("STATUS_DELETE_FAILED").With("resource_id", resourceID.String()).Wrap(err)
	}
	return nil
}

// scanStatusRow scans one status row, failing closed on malformed levels.
func scanStatusRow(ctx context.Context, row pgx.Row) (*accessctl.Status, error) {
	var st accessctl.Status
	var idStr, levelStr string

	err := row.Scan(&idStr, &levelStr, &st.EmbargoStart, &st.EmbargoEnd, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}

	st.ResourceID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("STATUS_PARSE_FAILED").With("field", "resource_id").With("value", idStr).Wrap(err)
	}

	level, parseErr := accessctl.ParseLevel(levelStr)
	if parseErr != nil {
		slog.WarnContext(ctx, "malformed access level stored, failing closed",
			"resource_id", idStr, "level", levelStr)
	}
	st.Level = level

	return &st, nil
}

// Compile-time interface check.
var _ accessctl.StatusRepository = (*StatusRepository)(nil)
