// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package accessctl

import "github.com/oklog/ulid/v2"

// ResourceType identifies the kind of collection resource.
type ResourceType string

// ResourceType constants mirror the host platform's resource hierarchy:
// item sets contain items, items contain media.
const (
	ResourceItemSet ResourceType = "item_set"
	ResourceItem    ResourceType = "item"
	ResourceMedia   ResourceType = "media"
)

// Resource is the engine's view of a host-owned resource. The host platform
// remains the source of truth; the engine only reads identity, visibility,
// and hierarchy.
type Resource struct {
	ID       ulid.ULID
	Type     ResourceType
	Public   bool
	ParentID *ulid.ULID
	OwnerID  *ulid.ULID
}
