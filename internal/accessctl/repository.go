// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package accessctl

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// StatusRepository persists per-resource access statuses.
type StatusRepository interface {
	// Get returns the status for a resource, or ErrNotFound when no row
	// exists. Callers translate a missing row into the free default.
	Get(ctx context.Context, resourceID ulid.ULID) (*Status, error)
	// Set upserts a status. Timestamps are stamped by the store.
	Set(ctx context.Context, status *Status) error
	Delete(ctx context.Context, resourceID ulid.ULID) error
}

// GrantRepository persists access grants.
type GrantRepository interface {
	// FindByUser returns the grant for (resource, user), or ErrNotFound.
	FindByUser(ctx context.Context, resourceID, userID ulid.ULID) (*Grant, error)
	// FindByToken returns the grant for (resource, token), or ErrNotFound.
	FindByToken(ctx context.Context, resourceID ulid.ULID, token string) (*Grant, error)
	// Upsert searches for an existing grant matching the identity of g on
	// g.ResourceID and updates it, or creates a new row. The stored grant is
	// returned with store-stamped Created/Modified.
	Upsert(ctx context.Context, g *Grant) (*Grant, error)
	ListByResource(ctx context.Context, resourceID ulid.ULID) ([]*Grant, error)
}

// RequestRepository persists access requests and their resource links.
type RequestRepository interface {
	// Create persists the request and its resource links as one write.
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id ulid.ULID) (*Request, error)
	UpdateStatus(ctx context.Context, id ulid.ULID, status RequestStatus) error
	ListByStatus(ctx context.Context, status RequestStatus) ([]*Request, error)
}

// ReservedRepository persists the legacy reserved markers.
type ReservedRepository interface {
	// IsMarked reports whether the resource carries the legacy reserved
	// marker. Existence only; the marker's dates are ignored.
	IsMarked(ctx context.Context, resourceID ulid.ULID) (bool, error)
	Mark(ctx context.Context, resourceID ulid.ULID, start, end *time.Time) error
	Unmark(ctx context.Context, resourceID ulid.ULID) error
}

// ResourceDirectory resolves host-owned resources. The engine never writes
// through this interface.
type ResourceDirectory interface {
	Get(ctx context.Context, id ulid.ULID) (*Resource, error)
	// Children returns the direct children of a container resource:
	// items of an item set, media of an item. Empty for media.
	Children(ctx context.Context, id ulid.ULID) ([]*Resource, error)
	// List pages through all resources in ID order, returning up to limit
	// resources with IDs greater than after.
	List(ctx context.Context, after ulid.ULID, limit int) ([]*Resource, error)
}

// LogAccessType classifies what an audit entry refers to.
type LogAccessType string

// Audit entry subjects.
const (
	LogAccess  LogAccessType = "access"
	LogRequest LogAccessType = "request"
)

// LogEntry is one append-only audit record. The trail is write-only: policy
// decisions never consult it.
type LogEntry struct {
	ID         ulid.ULID
	UserID     *ulid.ULID
	AccessID   ulid.ULID
	AccessType LogAccessType
	Action     string
	Date       time.Time
}

// AccessLogRepository appends audit entries.
type AccessLogRepository interface {
	Append(ctx context.Context, e *LogEntry) error
}

// Transactor runs a function within one database transaction. Repositories
// called inside the function participate in that transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
