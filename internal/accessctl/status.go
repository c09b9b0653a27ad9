// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package accessctl

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Status is the persisted access classification of one resource: its level
// plus an optional embargo window. A resource without a Status row is free
// with no embargo.
type Status struct {
	ResourceID   ulid.ULID
	Level        Level
	EmbargoStart *time.Time
	EmbargoEnd   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FreeStatus returns the default status for a resource with no stored row.
func FreeStatus(resourceID ulid.ULID) Status {
	return Status{ResourceID: resourceID, Level: LevelFree}
}

// HasEmbargo reports whether any embargo bound is set.
func (s Status) HasEmbargo() bool {
	return s.EmbargoStart != nil || s.EmbargoEnd != nil
}

// UnderEmbargo reports whether now falls inside the embargo window. An unset
// bound is unbounded in that direction. An inverted window (start after end)
// cannot be proven safe and is treated as always under embargo.
func (s Status) UnderEmbargo(now time.Time) bool {
	if !s.HasEmbargo() {
		return false
	}
	if s.EmbargoStart != nil && s.EmbargoEnd != nil && s.EmbargoStart.After(*s.EmbargoEnd) {
		return true
	}
	if s.EmbargoStart != nil && now.Before(*s.EmbargoStart) {
		return false
	}
	if s.EmbargoEnd != nil && now.After(*s.EmbargoEnd) {
		return false
	}
	return true
}
