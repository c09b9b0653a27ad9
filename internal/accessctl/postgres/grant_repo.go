// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/accessctl"
)

const grantColumns = `id, resource_id, user_id, token, enabled, temporal, start_date, end_date, created_at, updated_at`

// GrantRepository implements accessctl.GrantRepository using PostgreSQL.
type GrantRepository struct {
	db DB
}

// NewGrantRepository creates a new GrantRepository.
func NewGrantRepository(db DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// FindByUser returns the grant for (resource, user), or accessctl.ErrNotFound.
func (r *GrantRepository) FindByUser(ctx context.Context, resourceID, userID ulid.ULID) (*accessctl.Grant, error) {
	row := dbFromCtx(ctx, r.db).QueryRow(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants WHERE resource_id = $1 AND user_id = $2
	`, resourceID.String(), userID.String())

	grant, err := scanGrantRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("GRANT_NOT_FOUND").
			With("resource_id", resourceID.String()).
			With("user_id", userID.String()).
			Wrap(accessctl.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("GRANT_GET_FAILED").With("resource_id", resourceID.String()).Wrap(err)
	}
	return grant, nil
}

// FindByToken returns the grant for (resource, token), or accessctl.ErrNotFound.
func (r *GrantRepository) FindByToken(ctx context.Context, resourceID ulid.ULID, token string) (*accessctl.Grant, error) {
	row := dbFromCtx(ctx, r.db).QueryRow(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants WHERE resource_id = $1 AND token = $2
	`, resourceID.String(), token)

	grant, err := scanGrantRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("GRANT_NOT_FOUND").
			With("resource_id", resourceID.String()).
			Wrap(accessctl.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("GRANT_GET_FAILED").With("resource_id", resourceID.String()).Wrap(err)
	}
	return grant, nil
}

// Upsert searches for an existing grant matching g's identity on g.ResourceID
// and updates it, or inserts a new row. Search-then-update keeps at most one
// effective grant per (resource, identity) without relying on a database
// constraint. Created/Modified come back stamped by the store.
func (r *GrantRepository) Upsert(ctx context.Context, g *accessctl.Grant) (*accessctl.Grant, error) {
	db := dbFromCtx(ctx, r.db)

	existing, err := r.findExisting(ctx, g)
	if err != nil && !errors.Is(err, accessctl.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		row := db.QueryRow(ctx, `
			UPDATE access_grants
			SET enabled = $2, temporal = $3, start_date = $4, end_date = $5, updated_at = now()
			WHERE id = $1
			RETURNING `+grantColumns+`
		`, existing.ID.String(), g.Enabled, g.Temporal,
			normalizeTimePtr(g.StartDate), normalizeTimePtr(g.EndDate))
		updated, err := scanGrantRow(row)
		if err != nil {
			return nil, oops.Code("GRANT_UPDATE_FAILED").With("id", existing.ID.String()).Wrap(err)
		}
		return updated, nil
	}

	id := g.ID
	if id == (ulid.ULID{}) {
		id = ulid.Make()
	}
	row := db.QueryRow(ctx, `
		INSERT INTO access_grants (id, resource_id, user_id, token, enabled, temporal, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+grantColumns+`
	`, id.String(), g.ResourceID.String(), ulidToStringPtr(g.UserID), g.Token,
		g.Enabled, g.Temporal, normalizeTimePtr(g.StartDate), normalizeTimePtr(g.EndDate))
	created, err := scanGrantRow(row)
	if err != nil {
		return nil, oops.Code("GRANT_CREATE_FAILED").
			With("resource_id", g.ResourceID.String()).
			Wrap(err)
	}
	return created, nil
}

// findExisting locates the grant matching g's identity, preferring the user
// binding over the token.
func (r *GrantRepository) findExisting(ctx context.Context, g *accessctl.Grant) (*accessctl.Grant, error) {
	switch {
	case g.UserID != nil:
		return r.FindByUser(ctx, g.ResourceID, *g.UserID)
	case g.Token != nil && *g.Token != "":
		return r.FindByToken(ctx, g.ResourceID, *g.Token)
	default:
		return nil, accessctl.ErrNotFound
	}
}

// ListByResource returns all grants for a resource, newest first.
func (r *GrantRepository) ListByResource(ctx context.Context, resourceID ulid.ULID) ([]*accessctl.Grant, error) {
	rows, err := dbFromCtx(ctx, r.db).Query(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants WHERE resource_id = $1
		ORDER BY created_at DESC
	`, resourceID.String())
	if err != nil {
		return nil, oops.Code("GRANT_QUERY_FAILED").With("resource_id", resourceID.String()).Wrap(err)
	}
	defer rows.Close()

	grants := make([]*accessctl.Grant, 0)
	for rows.Next() {
		grant, err := scanGrantRow(rows)
		if err != nil {
			return nil, oops.Code("GRANT_SCAN_FAILED").Wrap(err)
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("GRANT_ITERATE_FAILED").Wrap(err)
	}
	return grants, nil
}

// scanGrantRow scans one grant from a row.
func scanGrantRow(row pgx.Row) (*accessctl.Grant, error) {
	var g accessctl.Grant
	var idStr string
	var resourceIDStr string
	var userIDStr *string

	err := row.Scan(&idStr, &resourceIDStr, &userIDStr, &g.Token, &g.Enabled, &g.Temporal,
		&g.StartDate, &g.EndDate, &g.Created, &g.Modified)
	if err != nil {
		return nil, err
	}

	g.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("GRANT_PARSE_FAILED").With("field", "id").With("value", idStr).Wrap(err)
	}
	g.ResourceID, err = ulid.Parse(resourceIDStr)
	if err != nil {
		return nil, oops.Code("GRANT_PARSE_FAILED").With("field", "resource_id").With("value", resourceIDStr).Wrap(err)
	}
	g.UserID, err = parseOptionalULID(userIDStr, "user_id")
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Compile-time interface check.
var _ accessctl.GrantRepository = (*GrantRepository)(nil)
