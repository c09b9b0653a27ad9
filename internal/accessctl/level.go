// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package accessctl implements the access-evaluation policy engine for
// digital-collection resources.
//
// A resource carries an access level (free, reserved, protected, forbidden)
// and an optional embargo window. The Evaluator combines the level, the
// embargo, the actor's identity, and any access grants into an allow/deny
// decision for metadata views and for file-content views. Malformed policy
// data always resolves toward denial.
package accessctl

import (
	"github.com/samber/oops"
)

// Level classifies how restricted a resource is. Levels are ordered by
// restrictiveness: LevelFree < LevelReserved < LevelProtected < LevelForbidden.
type Level int

// Level constants, least to most restrictive.
const (
	// LevelFree leaves record and file content open to everyone.
	LevelFree Level = iota
	// LevelReserved keeps metadata open but gates file content.
	LevelReserved
	// LevelProtected gates both metadata and file content.
	LevelProtected
	// LevelForbidden makes the resource unavailable to non-privileged actors,
	// regardless of any grant held.
	LevelForbidden
)

var levelStrings = [...]string{
	"free",
	"reserved",
	"protected",
	"forbidden",
}

func (l Level) String() string {
	if l >= 0 && int(l) < len(levelStrings) {
		return levelStrings[l]
	}
	return "forbidden"
}

// ParseLevel converts a stored level string into a Level. Unknown strings
// return LevelForbidden together with a LEVEL_INVALID error so that callers
// which ignore the error still fail closed.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "free":
		return LevelFree, nil
	case "reserved":
		return LevelReserved, nil
	case "protected":
		return LevelProtected, nil
	case "forbidden":
		return LevelForbidden, nil
	default:
		return LevelForbidden, oops.
			Code("LEVEL_INVALID").
			With("level", s).
			Errorf("unrecognized access level %q", s)
	}
}

// Gated reports whether file content at this level requires a grant.
func (l Level) Gated() bool {
	return l == LevelReserved || l == LevelProtected
}
