// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/accessctl"
)

// AccessLogRepository implements accessctl.AccessLogRepository using
// PostgreSQL. Append-only; nothing in the engine reads it back.
type AccessLogRepository struct {
	db DB
}

// NewAccessLogRepository creates a new AccessLogRepository.
func NewAccessLogRepository(db DB) *AccessLogRepository {
	return &AccessLogRepository{db: db}
}

// Append writes one audit entry, stamping ID and date when unset.
func (r *AccessLogRepository) Append(ctx context.Context, e *accessctl.LogEntry) error {
	id := e.ID
	if id == (ulid.ULID{}) {
		id = ulid.Make()
	}
	_, err := dbFromCtx(ctx, r.db).Exec(ctx, `
		INSERT INTO access_log (id, user_id, access_id, access_type, action, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, id.String(), ulidToStringPtr(e.UserID), e.AccessID.String(), string(e.AccessType), e.Action)
	if err != nil {
		return oops.Code("ACCESS_LOG_APPEND_FAILED").
			With("access_id", e.AccessID.String()).
			With("access_type", string(e.AccessType)).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ accessctl.AccessLogRepository = (*AccessLogRepository)(nil)
