// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package reindex implements the bulk status maintenance job: filling missing
// status rows, syncing the legacy marker table with leveled statuses, and
// propagating container statuses to children.
package reindex

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/gatekeep/gatekeep/internal/accessctl"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// SyncDirection selects how the legacy marker table and the leveled status
// rows are reconciled.
type SyncDirection int

const (
	// SyncNone leaves both stores as they are.
	SyncNone SyncDirection = iota
	// SyncLegacyToLeveled writes a reserved status for every marked resource.
	SyncLegacyToLeveled
	// SyncLeveledToLegacy marks every gated resource and unmarks free ones.
	SyncLeveledToLegacy
)

// Options controls one job run.
type Options struct {
	// FillMissing writes FillLevel for resources without a status row.
	FillMissing bool
	FillLevel   accessctl.Level
	Sync        SyncDirection
	// Recursive copies a container's status onto its children, item set to
	// items to media. Children get their own rows; evaluation never inherits.
	Recursive bool
	// PageSize bounds each directory page. Defaults to 100.
	PageSize int
}

// Result reports what a run did. A run with failures still completes;
// processed resources stay valid.
type Result struct {
	Processed int
	Failed    int
}

// Job walks all resources and applies the configured maintenance steps.
// Every step is an idempotent upsert, so an interrupted run can simply be
// rerun.
type Job struct {
	statuses  accessctl.StatusRepository
	reserved  accessctl.ReservedRepository
	directory accessctl.ResourceDirectory
	logger    *slog.Logger
	backoff   func() retry.Backoff
}

// NewJob creates a Job.
func NewJob(statuses accessctl.StatusRepository, reserved accessctl.ReservedRepository, directory accessctl.ResourceDirectory, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		statuses:  statuses,
		reserved:  reserved,
		directory: directory,
		logger:    logger,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(50*time.Millisecond))
		},
	}
}

// Run pages through all resources and applies the options to each. Per-resource
// failures are retried, then counted and skipped; the run keeps going.
func (j *Job) Run(ctx context.Context, opts Options) (*Result, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	result := &Result{}
	var after ulid.ULID
	for {
		page, err := j.directory.List(ctx, after, pageSize)
		if err != nil {
			return result, oops.Code("REINDEX_LIST_FAILED").With("after", after.String()).Wrap(err)
		}
		if len(page) == 0 {
			return result, nil
		}

		for _, resource := range page {
			err := retry.Do(ctx, j.backoff(), func(ctx context.Context) error {
				return retry.RetryableError(j.process(ctx, resource, opts))
			})
			if err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				result.Failed++
				reindexResources.WithLabelValues("failed").Inc()
				errutil.LogError(j.logger, "reindex: resource failed", oops.
					With("resource_id", resource.ID.String()).
					Wrap(err))
				continue
			}
			result.Processed++
			reindexResources.WithLabelValues("processed").Inc()
		}
		after = page[len(page)-1].ID
	}
}

// process applies the configured steps to one resource.
func (j *Job) process(ctx context.Context, resource *accessctl.Resource, opts Options) error {
	if opts.FillMissing {
		if err := j.fillMissing(ctx, resource.ID, opts.FillLevel); err != nil {
			return err
		}
	}

	switch opts.Sync {
	case SyncLegacyToLeveled:
		if err := j.syncLegacyToLeveled(ctx, resource.ID); err != nil {
			return err
		}
	case SyncLeveledToLegacy:
		if err := j.syncLeveledToLegacy(ctx, resource.ID); err != nil {
			return err
		}
	}

	if opts.Recursive && resource.Type != accessctl.ResourceMedia {
		if err := j.propagate(ctx, resource); err != nil {
			return err
		}
	}
	return nil
}

// fillMissing writes level for resources with no status row.
func (j *Job) fillMissing(ctx context.Context, resourceID ulid.ULID, level accessctl.Level) error {
	_, err := j.statuses.Get(ctx, resourceID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, accessctl.ErrNotFound) {
		return err
	}
	return j.statuses.Set(ctx, &accessctl.Status{ResourceID: resourceID, Level: level})
}

// syncLegacyToLeveled raises marked resources to reserved. Resources already
// gated harder keep their level.
func (j *Job) syncLegacyToLeveled(ctx context.Context, resourceID ulid.ULID) error {
	marked, err := j.reserved.IsMarked(ctx, resourceID)
	if err != nil {
		return err
	}
	if !marked {
		return nil
	}

	st, err := j.statuses.Get(ctx, resourceID)
	if err != nil && !errors.Is(err, accessctl.ErrNotFound) {
		return err
	}
	if err == nil && st.Level >= accessctl.LevelReserved {
		return nil
	}
	return j.statuses.Set(ctx, &accessctl.Status{ResourceID: resourceID, Level: accessctl.LevelReserved})
}

// syncLeveledToLegacy mirrors the leveled rows into the marker table: gated
// levels mark, free unmarks.
func (j *Job) syncLeveledToLegacy(ctx context.Context, resourceID ulid.ULID) error {
	st, err := j.statuses.Get(ctx, resourceID)
	if errors.Is(err, accessctl.ErrNotFound) {
		return j.reserved.Unmark(ctx, resourceID)
	}
	if err != nil {
		return err
	}
	if st.Level.Gated() {
		return j.reserved.Mark(ctx, resourceID, st.EmbargoStart, st.EmbargoEnd)
	}
	return j.reserved.Unmark(ctx, resourceID)
}

// propagate copies the container's status row onto each direct child. Deeper
// levels are reached when the job visits the children themselves.
func (j *Job) propagate(ctx context.Context, resource *accessctl.Resource) error {
	st, err := j.statuses.Get(ctx, resource.ID)
	if errors.Is(err, accessctl.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	children, err := j.directory.Children(ctx, resource.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		err := j.statuses.Set(ctx, &accessctl.Status{
			ResourceID:   child.ID,
			Level:        st.Level,
			EmbargoStart: st.EmbargoStart,
			EmbargoEnd:   st.EmbargoEnd,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
