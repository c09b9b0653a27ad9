// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package accessctl

import "errors"

// Sentinel errors shared across the engine. Stores wrap these with oops
// codes and context; callers test with errors.Is.
var (
	// ErrNotFound marks lookups of nonexistent resources, statuses, grants,
	// or requests.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks operations the acting identity may not perform.
	ErrForbidden = errors.New("forbidden")
)
