// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package accessctl

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RequestStatus is the state of an access request.
type RequestStatus string

// Request lifecycle states. A request starts as new, is resolved to accepted
// or rejected by an administrator, and may later be reopened as renew for
// another resolution cycle.
const (
	RequestNew      RequestStatus = "new"
	RequestRenew    RequestStatus = "renew"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// ParseRequestStatus converts a stored status string into a RequestStatus.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case RequestNew, RequestRenew, RequestAccepted, RequestRejected:
		return RequestStatus(s), nil
	default:
		return "", oops.
			Code("REQUEST_STATUS_INVALID").
			With("status", s).
			Errorf("unrecognized request status %q", s)
	}
}

// CanTransitionTo reports whether a resolution from s to next is legal.
// Re-resolving to the current terminal state is allowed so that accepting an
// already-accepted request is idempotent.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch s {
	case RequestNew, RequestRenew:
		return next == RequestAccepted || next == RequestRejected
	case RequestAccepted:
		return next == RequestAccepted || next == RequestRenew
	case RequestRejected:
		return next == RequestRejected || next == RequestRenew
	default:
		return false
	}
}

// Request is a visitor's ask for elevated access to one or more resources.
// The requester is identified by a user account, an email address, or a
// token; at least one of user/email must be present at creation.
type Request struct {
	ID     ulid.ULID
	UserID *ulid.ULID
	Email  *string
	Token  *string
	Status RequestStatus
	// Recursive asks that acceptance cascade to child resources:
	// item set -> items -> media.
	Recursive bool
	Enabled   bool
	Temporal  bool
	Start     *time.Time
	End       *time.Time
	Name      string
	Message   string
	// Fields carries free-form associative data captured from the request form.
	Fields map[string]any
	// ResourceIDs are the targeted resources (many-to-many, owned by the request).
	ResourceIDs []ulid.ULID
	Created     time.Time
	Modified    time.Time
}
