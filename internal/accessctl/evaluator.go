// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package accessctl

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// EvaluatorConfig carries the deployment-wide policy switches. They are read
// from configuration once at startup.
type EvaluatorConfig struct {
	// Mode selects the leveled model or one of the legacy marker modes.
	Mode PolicyMode
	// EnforceEmbargo gates content on the embargo window. Disabling it is an
	// explicit deployment choice; admins bypass embargo regardless.
	EnforceEmbargo bool
	// FullAccess disables individual gating entirely: any authenticated
	// actor may view gated content without a grant.
	FullAccess bool
}

// Evaluator computes access decisions from statuses, grants, and actor
// identity. Decisions are pure given the stored rows and the clock; the
// evaluator holds no mutable state.
type Evaluator struct {
	statuses StatusRepository
	grants   GrantRepository
	reserved ReservedRepository
	cfg      EvaluatorConfig
	now      func() time.Time
}

// NewEvaluator creates an Evaluator. The reserved repository may be nil when
// the deployment runs in leveled mode.
func NewEvaluator(statuses StatusRepository, grants GrantRepository, reserved ReservedRepository, cfg EvaluatorConfig) *Evaluator {
	return &Evaluator{
		statuses: statuses,
		grants:   grants,
		reserved: reserved,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the evaluator's clock. Test hook.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// EffectiveStatus returns the status governing a resource. A resource with
// no stored row is free with no embargo. There is no inheritance: a media's
// own status governs independent of its parent item or item set. In legacy
// modes the reserved marker maps to the reserved level.
func (e *Evaluator) EffectiveStatus(ctx context.Context, resource *Resource) (Status, error) {
	if e.cfg.Mode.Legacy() {
		marked, err := e.reserved.IsMarked(ctx, resource.ID)
		if err != nil {
			return FreeStatus(resource.ID), err
		}
		st := FreeStatus(resource.ID)
		if marked {
			st.Level = LevelReserved
		}
		return st, nil
	}

	st, err := e.statuses.Get(ctx, resource.ID)
	if errors.Is(err, ErrNotFound) {
		return FreeStatus(resource.ID), nil
	}
	if err != nil {
		return FreeStatus(resource.ID), err
	}
	return *st, nil
}

// CanViewRecord decides whether the actor may view the resource's metadata
// record. Looser than CanViewContent: reserved resources keep their records
// open via the public flag or the legacy marker.
func (e *Evaluator) CanViewRecord(ctx context.Context, resource *Resource, actor Actor) (bool, error) {
	allowed, err := e.canViewRecord(ctx, resource, actor)
	recordDecision("record", allowed, err)
	return allowed, err
}

func (e *Evaluator) canViewRecord(ctx context.Context, resource *Resource, actor Actor) (bool, error) {
	if actor.Admin {
		return true, nil
	}
	if resource.Public {
		return true, nil
	}

	if e.cfg.Mode.Legacy() {
		return e.reserved.IsMarked(ctx, resource.ID)
	}

	st, err := e.EffectiveStatus(ctx, resource)
	if err != nil {
		return false, err
	}
	if st.Level == LevelForbidden {
		return false, nil
	}
	grant, err := e.validGrant(ctx, resource.ID, actor)
	if err != nil {
		return false, err
	}
	return grant != nil, nil
}

// CanViewContent decides whether the actor may view the resource's file
// content. Stricter than CanViewRecord: embargo applies across all levels,
// and forbidden denies unconditionally regardless of any grant held.
func (e *Evaluator) CanViewContent(ctx context.Context, resource *Resource, actor Actor) (bool, error) {
	allowed, err := e.canViewContent(ctx, resource, actor)
	recordDecision("content", allowed, err)
	return allowed, err
}

func (e *Evaluator) canViewContent(ctx context.Context, resource *Resource, actor Actor) (bool, error) {
	if actor.Admin {
		return true, nil
	}

	st, err := e.EffectiveStatus(ctx, resource)
	if err != nil {
		return false, err
	}

	if e.cfg.EnforceEmbargo && st.UnderEmbargo(e.now()) {
		return false, nil
	}

	switch st.Level {
	case LevelFree:
		return true, nil
	case LevelForbidden:
		return false, nil
	case LevelReserved, LevelProtected:
		if e.cfg.Mode == ModeLegacyGlobal {
			return actor.Authenticated(), nil
		}
		if e.cfg.FullAccess {
			return actor.Authenticated(), nil
		}
		grant, err := e.validGrant(ctx, resource.ID, actor)
		if err != nil {
			return false, err
		}
		return grant != nil, nil
	default:
		return false, nil
	}
}

// validGrant returns the actor's enabled, in-window grant for the resource,
// or nil when none applies. Users are matched by account, anonymous visitors
// by presented token.
func (e *Evaluator) validGrant(ctx context.Context, resourceID ulid.ULID, actor Actor) (*Grant, error) {
	var grant *Grant
	var err error

	switch {
	case actor.UserID != nil:
		grant, err = e.grants.FindByUser(ctx, resourceID, *actor.UserID)
	case actor.Token != "":
		grant, err = e.grants.FindByToken(ctx, resourceID, actor.Token)
	default:
		return nil, nil
	}

	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !grant.ValidAt(e.now()) {
		return nil, nil
	}
	return grant, nil
}
