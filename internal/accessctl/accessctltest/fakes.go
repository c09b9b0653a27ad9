// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package accessctltest provides in-memory repository fakes for engine tests.
package accessctltest

import (
	"context"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gatekeep/gatekeep/internal/accessctl"
)

// StatusStore is an in-memory StatusRepository.
type StatusStore struct {
	Rows map[ulid.ULID]accessctl.Status
	// Err, when set, is returned by every call.
	Err error
}

// NewStatusStore creates an empty StatusStore.
func NewStatusStore() *StatusStore {
	return &StatusStore{Rows: make(map[ulid.ULID]accessctl.Status)}
}

// Get returns the stored status or accessctl.ErrNotFound.
func (s *StatusStore) Get(_ context.Context, resourceID ulid.ULID) (*accessctl.Status, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	st, ok := s.Rows[resourceID]
	if !ok {
		return nil, accessctl.ErrNotFound
	}
	return &st, nil
}

// Set upserts a status row.
func (s *StatusStore) Set(_ context.Context, status *accessctl.Status) error {
	if s.Err != nil {
		return s.Err
	}
	s.Rows[status.ResourceID] = *status
	return nil
}

// Delete removes a status row.
func (s *StatusStore) Delete(_ context.Context, resourceID ulid.ULID) error {
	if s.Err != nil {
		return s.Err
	}
	delete(s.Rows, resourceID)
	return nil
}

// GrantStore is an in-memory GrantRepository.
type GrantStore struct {
	Rows []*accessctl.Grant
	Err  error
	now  func() time.Time
}

// NewGrantStore creates an empty GrantStore.
func NewGrantStore() *GrantStore {
	return &GrantStore{now: time.Now}
}

// FindByUser returns the grant for (resource, user) or accessctl.ErrNotFound.
func (s *GrantStore) FindByUser(_ context.Context, resourceID, userID ulid.ULID) (*accessctl.Grant, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	for _, g := range s.Rows {
		if g.ResourceID == resourceID && g.UserID != nil && *g.UserID == userID {
			return g, nil
		}
	}
	return nil, accessctl.ErrNotFound
}

// FindByToken returns the grant for (resource, token) or accessctl.ErrNotFound.
func (s *GrantStore) FindByToken(_ context.Context, resourceID ulid.ULID, token string) (*accessctl.Grant, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	for _, g := range s.Rows {
		if g.ResourceID == resourceID && g.Token != nil && *g.Token == token {
			return g, nil
		}
	}
	return nil, accessctl.ErrNotFound
}

// Upsert updates the grant matching g's identity on g.ResourceID or appends a
// new row, mirroring the search-then-update-or-create store behavior.
func (s *GrantStore) Upsert(_ context.Context, g *accessctl.Grant) (*accessctl.Grant, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	for _, existing := range s.Rows {
		if existing.ResourceID != g.ResourceID {
			continue
		}
		sameUser := g.UserID != nil && existing.UserID != nil && *existing.UserID == *g.UserID
		sameToken := g.UserID == nil && g.Token != nil && existing.Token != nil && *existing.Token == *g.Token
		if sameUser || sameToken {
			existing.Enabled = g.Enabled
			existing.Temporal = g.Temporal
			existing.StartDate = g.StartDate
			existing.EndDate = g.EndDate
			existing.Modified = s.now()
			return existing, nil
		}
	}
	stored := *g
	if stored.ID == (ulid.ULID{}) {
		stored.ID = ulid.Make()
	}
	stored.Created = s.now()
	stored.Modified = stored.Created
	s.Rows = append(s.Rows, &stored)
	return &stored, nil
}

// ListByResource returns all grants for a resource.
func (s *GrantStore) ListByResource(_ context.Context, resourceID ulid.ULID) ([]*accessctl.Grant, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*accessctl.Grant
	for _, g := range s.Rows {
		if g.ResourceID == resourceID {
			out = append(out, g)
		}
	}
	return out, nil
}

// ReservedStore is an in-memory ReservedRepository.
type ReservedStore struct {
	Marked map[ulid.ULID]bool
	Err    error
}

// NewReservedStore creates an empty ReservedStore.
func NewReservedStore() *ReservedStore {
	return &ReservedStore{Marked: make(map[ulid.ULID]bool)}
}

// IsMarked reports marker presence.
func (s *ReservedStore) IsMarked(_ context.Context, resourceID ulid.ULID) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	return s.Marked[resourceID], nil
}

// Mark sets the marker.
func (s *ReservedStore) Mark(_ context.Context, resourceID ulid.ULID, _, _ *time.Time) error {
	if s.Err != nil {
		return s.Err
	}
	s.Marked[resourceID] = true
	return nil
}

// Unmark clears the marker.
func (s *ReservedStore) Unmark(_ context.Context, resourceID ulid.ULID) error {
	if s.Err != nil {
		return s.Err
	}
	delete(s.Marked, resourceID)
	return nil
}

// Directory is an in-memory ResourceDirectory.
type Directory struct {
	Resources map[ulid.ULID]*accessctl.Resource
	Err       error
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{Resources: make(map[ulid.ULID]*accessctl.Resource)}
}

// Add registers a resource and returns it for convenience.
func (d *Directory) Add(r *accessctl.Resource) *accessctl.Resource {
	d.Resources[r.ID] = r
	return r
}

// Get resolves a resource or returns accessctl.ErrNotFound.
func (d *Directory) Get(_ context.Context, id ulid.ULID) (*accessctl.Resource, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	r, ok := d.Resources[id]
	if !ok {
		return nil, accessctl.ErrNotFound
	}
	return r, nil
}

// Children returns resources whose ParentID is id, in ID order.
func (d *Directory) Children(_ context.Context, id ulid.ULID) ([]*accessctl.Resource, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	var out []*accessctl.Resource
	for _, r := range d.Resources {
		if r.ParentID != nil && *r.ParentID == id {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out, nil
}

// List pages through resources in ID order.
func (d *Directory) List(_ context.Context, after ulid.ULID, limit int) ([]*accessctl.Resource, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	var all []*accessctl.Resource
	for _, r := range d.Resources {
		if r.ID.Compare(after) > 0 {
			all = append(all, r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.Compare(all[j].ID) < 0 })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// RequestStore is an in-memory RequestRepository.
type RequestStore struct {
	Rows map[ulid.ULID]*accessctl.Request
	Err  error
}

// NewRequestStore creates an empty RequestStore.
func NewRequestStore() *RequestStore {
	return &RequestStore{Rows: make(map[ulid.ULID]*accessctl.Request)}
}

// Create stores the request, stamping ID and timestamps when unset.
func (s *RequestStore) Create(_ context.Context, r *accessctl.Request) error {
	if s.Err != nil {
		return s.Err
	}
	if r.ID == (ulid.ULID{}) {
		r.ID = ulid.Make()
	}
	now := time.Now()
	r.Created = now
	r.Modified = now
	stored := *r
	s.Rows[r.ID] = &stored
	return nil
}

// Get returns a request or accessctl.ErrNotFound.
func (s *RequestStore) Get(_ context.Context, id ulid.ULID) (*accessctl.Request, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	r, ok := s.Rows[id]
	if !ok {
		return nil, accessctl.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// UpdateStatus changes a request's status.
func (s *RequestStore) UpdateStatus(_ context.Context, id ulid.ULID, status accessctl.RequestStatus) error {
	if s.Err != nil {
		return s.Err
	}
	r, ok := s.Rows[id]
	if !ok {
		return accessctl.ErrNotFound
	}
	r.Status = status
	r.Modified = time.Now()
	return nil
}

// ListByStatus returns requests in the given status.
func (s *RequestStore) ListByStatus(_ context.Context, status accessctl.RequestStatus) ([]*accessctl.Request, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*accessctl.Request
	for _, r := range s.Rows {
		if r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// LogStore is an in-memory AccessLogRepository.
type LogStore struct {
	Entries []*accessctl.LogEntry
	Err     error
}

// Append records an entry.
func (s *LogStore) Append(_ context.Context, e *accessctl.LogEntry) error {
	if s.Err != nil {
		return s.Err
	}
	s.Entries = append(s.Entries, e)
	return nil
}

// Tx is a pass-through Transactor. BeginErr fails the transaction before fn
// runs; the fake has no rollback semantics beyond reporting fn's error.
type Tx struct {
	BeginErr error
	Calls    int
}

// InTransaction runs fn directly.
func (t *Tx) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.BeginErr != nil {
		return t.BeginErr
	}
	t.Calls++
	return fn(ctx)
}
