// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/accessctl"
)

// ReservedRepository implements accessctl.ReservedRepository using
// PostgreSQL. Row existence is the marker; the optional dates are kept for
// legacy data fidelity but never consulted by policy.
type ReservedRepository struct {
	db DB
}

// NewReservedRepository creates a new ReservedRepository.
func NewReservedRepository(db DB) *ReservedRepository {
	return &ReservedRepository{db: db}
}

// IsMarked reports whether the legacy reserved marker exists for a resource.
func (r *ReservedRepository) IsMarked(ctx context.Context, resourceID ulid.ULID) (bool, error) {
	var exists bool
	err := dbFromCtx(ctx, r.db).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM access_reserved WHERE resource_id = $1)
	`, resourceID.String()).Scan(&exists)
	if err != nil {
		return false, oops.Code("RESERVED_GET_FAILED").With("resource_id", resourceID.String()).Wrap(err)
	}
	return exists, nil
}

// Mark sets the reserved marker, keeping existing dates on re-mark.
func (r *ReservedRepository) Mark(ctx context.Context, resourceID ulid.ULID, start, end *time.Time) error {
	_, err := dbFromCtx(ctx, r.db).Exec(ctx, `
		INSERT INTO access_reserved (resource_id, start_date, end_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (resource_id) DO UPDATE
		SET start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date
	`, resourceID.String(), normalizeTimePtr(start), normalizeTimePtr(end))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return oops.Code("RESERVED_RESOURCE_UNKNOWN").
				With("resource_id", resourceID.String()).
				Wrap(accessctl.ErrNotFound)
		}
		return oops.Code("RESERVED_MARK_FAILED").With("resource_id", resourceID.String()).Wrap(err)
	}
	return nil
}

// Unmark removes the reserved marker. Unmarking an unmarked resource is a
// no-op.
func (r *ReservedRepository) Unmark(ctx context.Context, resourceID ulid.ULID) error {
	_, err := dbFromCtx(ctx, r.db).Exec(ctx,
		`DELETE FROM access_reserved WHERE resource_id = $1`, resourceID.String())
	if err != nil {
		return oops.Code("RESERVED_UNMARK_FAILED").With("resource_id", resourceID.String()).Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ accessctl.ReservedRepository = (*ReservedRepository)(nil)
