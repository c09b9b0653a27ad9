// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package accessctl

import "github.com/oklog/ulid/v2"

// Actor identifies who is asking for access. The host platform resolves the
// current session into an Actor before calling the engine.
type Actor struct {
	// UserID is set for authenticated users, nil for anonymous visitors.
	UserID *ulid.ULID
	// Admin marks actors holding the global view-all capability. Admins pass
	// every check, including embargo.
	Admin bool
	// Token is an opaque access token presented by an anonymous visitor,
	// empty when none was presented.
	Token string
	// ExternalAuth reports whether the user was authenticated by an external
	// identity provider (SSO/CAS/LDAP). It only influences which fields are
	// required on request submission.
	ExternalAuth bool
}

// Anonymous returns an actor with no identity.
func Anonymous() Actor {
	return Actor{}
}

// Authenticated reports whether the actor is a signed-in user.
func (a Actor) Authenticated() bool {
	return a.UserID != nil
}
