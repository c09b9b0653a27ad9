// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package accessctl

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Grant enables content access to one resource for one identity: either a
// user or the holder of an opaque token. Grants are not deleted on expiry;
// Enabled and the date window govern effective validity, not row existence.
type Grant struct {
	ID         ulid.ULID
	ResourceID ulid.ULID
	// UserID identifies a user-bound grant; nil for token- or email-based grants.
	UserID *ulid.ULID
	// Token is the opaque lookup key for grants not bound to a user account.
	Token *string
	Enabled bool
	// Temporal marks whether StartDate/EndDate are meaningful.
	Temporal  bool
	StartDate *time.Time
	EndDate   *time.Time
	Created   time.Time
	Modified  time.Time
}

// ValidAt reports whether the grant permits access at the given instant.
// Disabled grants never do. Non-temporal grants have no window. An inverted
// window invalidates the grant rather than widening it.
func (g Grant) ValidAt(now time.Time) bool {
	if !g.Enabled {
		return false
	}
	if !g.Temporal {
		return true
	}
	if g.StartDate != nil && g.EndDate != nil && g.StartDate.After(*g.EndDate) {
		return false
	}
	if g.StartDate != nil && now.Before(*g.StartDate) {
		return false
	}
	if g.EndDate != nil && now.After(*g.EndDate) {
		return false
	}
	return true
}
