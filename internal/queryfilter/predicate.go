// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package queryfilter derives SQL visibility predicates equivalent to the
// evaluator's record check, so list and search queries filter at the database
// instead of per row in application code.
package queryfilter

import (
	"fmt"
	"strings"

	"github.com/gatekeep/gatekeep/internal/accessctl"
)

// Predicate is a SQL fragment with its positional arguments. The fragment is
// parenthesized and safe to AND/OR into a larger WHERE clause.
type Predicate struct {
	SQL  string
	Args []any
}

// Builder derives visibility predicates for the configured policy mode. The
// mode is fixed at construction, matching the evaluator it mirrors.
type Builder struct {
	mode accessctl.PolicyMode
	// alias is the resources table alias predicates reference.
	alias string
}

// NewBuilder creates a Builder for the given mode. Predicates reference the
// resources table by alias, "r" by default.
func NewBuilder(mode accessctl.PolicyMode) *Builder {
	return &Builder{mode: mode, alias: "r"}
}

// WithAlias sets the resources table alias referenced by predicates.
func (b *Builder) WithAlias(alias string) *Builder {
	b.alias = alias
	return b
}

// Visibility returns the record-visibility predicate for an actor, matching
// the boolean form decided by the evaluator: admins see everything, everyone
// sees public and owned rows, and non-public rows show through the legacy
// marker or a valid grant depending on mode. Placeholders are numbered from
// argOffset+1 so the fragment composes into an existing query.
func (b *Builder) Visibility(actor accessctl.Actor, argOffset int) Predicate {
	if actor.Admin {
		return Predicate{SQL: "(TRUE)"}
	}

	var branches []string
	var args []any
	next := func() string {
		return fmt.Sprintf("$%d", argOffset+len(args)+1)
	}

	branches = append(branches, fmt.Sprintf("%s.is_public = TRUE", b.alias))
	if actor.UserID != nil {
		branches = append(branches, fmt.Sprintf("%s.owner_id = %s", b.alias, next()))
		args = append(args, actor.UserID.String())
	}

	if b.mode.Legacy() {
		branches = append(branches, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM access_reserved res WHERE res.resource_id = %s.id)", b.alias))
		return Predicate{SQL: "(" + strings.Join(branches, " OR ") + ")", Args: args}
	}

	if grantMatch, grantArg := b.grantMatch(actor, next); grantMatch != "" {
		notForbidden := fmt.Sprintf(
			"NOT EXISTS (SELECT 1 FROM access_statuses s WHERE s.resource_id = %s.id AND s.level = 'forbidden')",
			b.alias)
		branches = append(branches, "("+notForbidden+" AND "+grantMatch+")")
		args = append(args, grantArg)
	}

	return Predicate{SQL: "(" + strings.Join(branches, " OR ") + ")", Args: args}
}

// grantMatch builds the EXISTS clause admitting rows the actor holds a valid
// grant for. Empty for anonymous actors without a token: they cannot hold one.
func (b *Builder) grantMatch(actor accessctl.Actor, next func() string) (string, any) {
	var identity string
	var arg any
	switch {
	case actor.UserID != nil:
		identity = "g.user_id = " + next()
		arg = actor.UserID.String()
	case actor.Token != "":
		identity = "g.token = " + next()
		arg = actor.Token
	default:
		return "", nil
	}

	clause := fmt.Sprintf(`EXISTS (SELECT 1 FROM access_grants g WHERE g.resource_id = %s.id AND %s AND g.enabled = TRUE AND (g.temporal = FALSE OR ((g.start_date IS NULL OR g.start_date <= now()) AND (g.end_date IS NULL OR g.end_date >= now()))))`,
		b.alias, identity)
	return clause, arg
}
