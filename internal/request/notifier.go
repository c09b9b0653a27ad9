// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package request

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
)

// Verb names the lifecycle event a notification carries.
type Verb string

// Notification verbs.
const (
	VerbCreated Verb = "created"
	VerbUpdated Verb = "updated"
)

// Notifier consumes request lifecycle events. The mail integration of the
// host platform implements this; delivery mechanics live outside the engine.
type Notifier interface {
	Notify(ctx context.Context, requestID ulid.ULID, verb Verb) error
}

// LogNotifier logs lifecycle events. It stands in when no mail integration
// is wired.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the event.
func (n *LogNotifier) Notify(ctx context.Context, requestID ulid.ULID, verb Verb) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "access request event",
		"request_id", requestID.String(),
		"verb", string(verb))
	return nil
}

// Compile-time interface check.
var _ Notifier = (*LogNotifier)(nil)
