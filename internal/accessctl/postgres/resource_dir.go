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

const resourceColumns = `id, type, is_public, parent_id, owner_id`

// ResourceDirectory implements accessctl.ResourceDirectory over the host
// platform's resources table. Read-only: the host owns these rows.
type ResourceDirectory struct {
	db DB
}

// NewResourceDirectory creates a new ResourceDirectory.
func NewResourceDirectory(db DB) *ResourceDirectory {
	return &ResourceDirectory{db: db}
}

// Get resolves a resource by ID, or returns accessctl.ErrNotFound.
func (d *ResourceDirectory) Get(ctx context.Context, id ulid.ULID) (*accessctl.Resource, error) {
	row := dbFromCtx(ctx, d.db).QueryRow(ctx, `
		SELECT `+resourceColumns+`
		FROM resources WHERE id = $1
	`, id.String())

	res, err := scanResourceRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESOURCE_NOT_FOUND").With("id", id.String()).Wrap(accessctl.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESOURCE_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return res, nil
}

// Children returns the direct children of a container resource in ID order.
func (d *ResourceDirectory) Children(ctx context.Context, id ulid.ULID) ([]*accessctl.Resource, error) {
	rows, err := dbFromCtx(ctx, d.db).Query(ctx, `
		SELECT `+resourceColumns+`
		FROM resources WHERE parent_id = $1
		ORDER BY id
	`, id.String())
	if err != nil {
		return nil, oops.Code("RESOURCE_QUERY_FAILED").With("parent_id", id.String()).Wrap(err)
	}
	defer rows.Close()

	return scanResources(rows)
}

// List pages through all resources in ID order.
func (d *ResourceDirectory) List(ctx context.Context, after ulid.ULID, limit int) ([]*accessctl.Resource, error) {
	rows, err := dbFromCtx(ctx, d.db).Query(ctx, `
		SELECT `+resourceColumns+`
		FROM resources WHERE id > $1
		ORDER BY id LIMIT $2
	`, after.String(), limit)
	if err != nil {
		return nil, oops.Code("RESOURCE_QUERY_FAILED").With("after", after.String()).Wrap(err)
	}
	defer rows.Close()

	return scanResources(rows)
}

func scanResources(rows pgx.Rows) ([]*accessctl.Resource, error) {
	resources := make([]*accessctl.Resource, 0)
	for rows.Next() {
		res, err := scanResourceRow(rows)
		if err != nil {
			return nil, oops.Code("RESOURCE_SCAN_FAILED").Wrap(err)
		}
		resources = append(resources, res)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("RESOURCE_ITERATE_FAILED").Wrap(err)
	}
	return resources, nil
}

func scanResourceRow(row pgx.Row) (*accessctl.Resource, error) {
	var res accessctl.Resource
	var idStr, typeStr string
	var parentIDStr, ownerIDStr *string

	err := row.Scan(&idStr, &typeStr, &res.Public, &parentIDStr, &ownerIDStr)
	if err != nil {
		return nil, err
	}

	res.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESOURCE_PARSE_FAILED").With("field", "id").With("value", idStr).Wrap(err)
	}
	res.Type = accessctl.ResourceType(typeStr)
	res.ParentID, err = parseOptionalULID(parentIDStr, "parent_id")
	if err != nil {
		return nil, err
	}
	res.OwnerID, err = parseOptionalULID(ownerIDStr, "owner_id")
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Compile-time interface check.
var _ accessctl.ResourceDirectory = (*ResourceDirectory)(nil)
