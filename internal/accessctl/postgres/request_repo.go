// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/accessctl"
)

const requestColumns = `id, user_id, email, token, status, recursive, enabled, temporal, start_date, end_date, name, message, fields, created_at, updated_at`

// RequestRepository implements accessctl.RequestRepository using PostgreSQL.
// The resource links live in access_request_resources, a join table owned by
// the request side; the resource side is a read-only reference.
type RequestRepository struct {
	db DB
}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(db DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create persists a request and its resource links. Callers wrap this in a
// transaction so a link failure never leaves a partial request behind.
func (r *RequestRepository) Create(ctx context.Context, req *accessctl.Request) error {
	db := dbFromCtx(ctx, r.db)

	if req.ID == (ulid.ULID{}) {
		req.ID = ulid.Make()
	}
	fieldsJSON, err := marshalFields(req.Fields)
	if err != nil {
		return oops.Code("REQUEST_CREATE_FAILED").With("id", req.ID.String()).Wrap(err)
	}

	row := db.QueryRow(ctx, `
		INSERT INTO access_requests (id, user_id, email, token, status, recursive, enabled, temporal, start_date, end_date, name, message, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING created_at, updated_at
	`, req.ID.String(), ulidToStringPtr(req.UserID), req.Email, req.Token,
		string(req.Status), req.Recursive, req.Enabled, req.Temporal,
		normalizeTimePtr(req.Start), normalizeTimePtr(req.End),
		req.Name, req.Message, fieldsJSON)
	if err := row.Scan(&req.Created, &req.Modified); err != nil {
		return oops.Code("REQUEST_CREATE_FAILED").With("id", req.ID.String()).Wrap(err)
	}

	for _, resourceID := range req.ResourceIDs {
		_, err := db.Exec(ctx, `
			INSERT INTO access_request_resources (request_id, resource_id)
			VALUES ($1, $2)
		`, req.ID.String(), resourceID.String())
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				switch pgErr.Code {
				case pgerrcode.UniqueViolation:
					return oops.Code("REQUEST_DUPLICATE_RESOURCE").
						With("request_id", req.ID.String()).
						With("resource_id", resourceID.String()).
						Wrapf(err, "resource %s linked twice", resourceID.String())
				case pgerrcode.ForeignKeyViolation:
					return oops.Code("REQUEST_RESOURCE_UNKNOWN").
						With("request_id", req.ID.String()).
						With("resource_id", resourceID.String()).
						Wrap(accessctl.ErrNotFound)
				}
			}
			return oops.Code("REQUEST_LINK_FAILED").
				With("request_id", req.ID.String()).
				With("resource_id", resourceID.String()).
				Wrap(err)
		}
	}
	return nil
}

// Get retrieves a request with its resource links.
func (r *RequestRepository) Get(ctx context.Context, id ulid.ULID) (*accessctl.Request, error) {
	db := dbFromCtx(ctx, r.db)

	row := db.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM access_requests WHERE id = $1
	`, id.String())

	req, err := scanRequestRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REQUEST_NOT_FOUND").With("id", id.String()).Wrap(accessctl.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REQUEST_GET_FAILED").With("id", id.String()).Wrap(err)
	}

	req.ResourceIDs, err = r.resourceLinks(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// UpdateStatus changes a request's status, stamping modified.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id ulid.ULID, status accessctl.RequestStatus) error {
	result, err := dbFromCtx(ctx, r.db).Exec(ctx, `
		UPDATE access_requests SET status = $2, updated_at = now() WHERE id = $1
	`, id.String(), string(status))
	if err != nil {
		return oops.Code("REQUEST_UPDATE_FAILED").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("REQUEST_NOT_FOUND").With("id", id.String()).Wrap(accessctl.ErrNotFound)
	}
	return nil
}

// ListByStatus returns requests in the given status, oldest first.
func (r *RequestRepository) ListByStatus(ctx context.Context, status accessctl.RequestStatus) ([]*accessctl.Request, error) {
	db := dbFromCtx(ctx, r.db)

	rows, err := db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM access_requests WHERE status = $1
		ORDER BY created_at
	`, string(status))
	if err != nil {
		return nil, oops.Code("REQUEST_QUERY_FAILED").With("status", string(status)).Wrap(err)
	}
	defer rows.Close()

	requests := make([]*accessctl.Request, 0)
	for rows.Next() {
		req, err := scanRequestRow(rows)
		if err != nil {
			return nil, oops.Code("REQUEST_SCAN_FAILED").Wrap(err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("REQUEST_ITERATE_FAILED").Wrap(err)
	}

	for _, req := range requests {
		req.ResourceIDs, err = r.resourceLinks(ctx, db, req.ID)
		if err != nil {
			return nil, err
		}
	}
	return requests, nil
}

// resourceLinks loads the target resource IDs of one request.
func (r *RequestRepository) resourceLinks(ctx context.Context, db DB, requestID ulid.ULID) ([]ulid.ULID, error) {
	rows, err := db.Query(ctx, `
		SELECT resource_id FROM access_request_resources
		WHERE request_id = $1 ORDER BY resource_id
	`, requestID.String())
	if err != nil {
		return nil, oops.Code("REQUEST_LINKS_FAILED").With("request_id", requestID.String()).Wrap(err)
	}
	defer rows.Close()

	ids := make([]ulid.ULID, 0)
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, oops.Code("REQUEST_LINKS_FAILED").With("request_id", requestID.String()).Wrap(err)
		}
		id, err := ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("REQUEST_PARSE_FAILED").With("field", "resource_id").With("value", idStr).Wrap(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("REQUEST_LINKS_FAILED").With("request_id", requestID.String()).Wrap(err)
	}
	return ids, nil
}

// scanRequestRow scans one request from a row, excluding resource links.
func scanRequestRow(row pgx.Row) (*accessctl.Request, error) {
	var req accessctl.Request
	var idStr, statusStr string
	var userIDStr *string
	var fieldsJSON []byte

	err := row.Scan(&idStr, &userIDStr, &req.Email, &req.Token, &statusStr,
		&req.Recursive, &req.Enabled, &req.Temporal, &req.Start, &req.End,
		&req.Name, &req.Message, &fieldsJSON, &req.Created, &req.Modified)
	if err != nil {
		return nil, err
	}

	req.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("REQUEST_PARSE_FAILED").With("field", "id").With("value", idStr).Wrap(err)
	}
	req.UserID, err = parseOptionalULID(userIDStr, "user_id")
	if err != nil {
		return nil, err
	}
	req.Status, err = accessctl.ParseRequestStatus(statusStr)
	if err != nil {
		return nil, err
	}
	req.Fields, err = unmarshalFields(fieldsJSON)
	if err != nil {
		return nil, oops.Code("REQUEST_PARSE_FAILED").With("field", "fields").Wrap(err)
	}
	return &req, nil
}

// marshalFields marshals the free-form fields map, nil for empty input.
func marshalFields(fields map[string]any) ([]byte, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, oops.With("operation", "marshal request fields").Wrap(err)
	}
	return b, nil
}

// unmarshalFields unmarshals the fields column, nil for SQL NULL.
func unmarshalFields(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, oops.With("operation", "unmarshal request fields").Wrap(err)
	}
	return fields, nil
}

// Compile-time interface check.
var _ accessctl.RequestRepository = (*RequestRepository)(nil)
