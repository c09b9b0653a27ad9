// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package request implements the access-request lifecycle: submission by
// visitors and resolution by administrators, with grant provisioning on
// acceptance.
package request

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/accessctl"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// Config is the deployment surface governing submissions.
type Config struct {
	// Modes selects which requester identities are accepted.
	Modes accessctl.RequestModes
	// FullAccess disables individual gating entirely; submitting individual
	// requests under full access is a configuration error.
	FullAccess bool
}

// Deps are the collaborators of a Service.
type Deps struct {
	Requests  accessctl.RequestRepository
	Grants    accessctl.GrantRepository
	Directory accessctl.ResourceDirectory
	Log       accessctl.AccessLogRepository
	Tx        accessctl.Transactor
	Notifier  Notifier
	// Fields validates the free-form submission fields; nil accepts any.
	Fields *FieldsSchema
	Logger *slog.Logger
}

// Service runs the access-request state machine.
type Service struct {
	requests  accessctl.RequestRepository
	grants    accessctl.GrantRepository
	directory accessctl.ResourceDirectory
	log       accessctl.AccessLogRepository
	tx        accessctl.Transactor
	notifier  Notifier
	fields    *FieldsSchema
	logger    *slog.Logger
	cfg       Config
}

// NewService creates a Service.
func NewService(deps Deps, cfg Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = &LogNotifier{Logger: logger}
	}
	return &Service{
		requests:  deps.Requests,
		grants:    deps.Grants,
		directory: deps.Directory,
		log:       deps.Log,
		tx:        deps.Tx,
		notifier:  notifier,
		fields:    deps.Fields,
		logger:    logger,
		cfg:       cfg,
	}
}

// SubmitInput carries one access-request submission.
type SubmitInput struct {
	ResourceIDs []ulid.ULID
	Email       *string
	Token       *string
	Recursive   bool
	Temporal    bool
	Start       *time.Time
	End         *time.Time
	Name        string
	Message     string
	Fields      map[string]any
}

// Submit validates and persists a new request in status new and emits a
// created notification. Validation failures carry per-field reasons and
// persist nothing.
func (s *Service) Submit(ctx context.Context, actor accessctl.Actor, in SubmitInput) (*accessctl.Request, error) {
	if s.cfg.FullAccess {
		return nil, oops.Code("CONFIG_INVALID").
			Errorf("access requests are disabled: full access is enabled")
	}
	if !s.cfg.Modes.Any() {
		return nil, oops.Code("CONFIG_INVALID").
			Errorf("access requests are disabled: no request mode is enabled")
	}

	req, err := s.buildRequest(actor, in)
	if err != nil {
		return nil, err
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.requests.Create(ctx, req); err != nil {
			return err
		}
		return s.log.Append(ctx, &accessctl.LogEntry{
			UserID:     req.UserID,
			AccessID:   req.ID,
			AccessType: accessctl.LogRequest,
			Action:     "created",
		})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, req.ID, VerbCreated)
	return req, nil
}

// buildRequest resolves the requester identity and validates the submission.
func (s *Service) buildRequest(actor accessctl.Actor, in SubmitInput) (*accessctl.Request, error) {
	fields := make(map[string]string)

	var userID *ulid.ULID
	if actor.Authenticated() {
		if s.cfg.Modes.User {
			userID = actor.UserID
		} else {
			fields["user"] = "user-based requests are not enabled"
		}
	}

	email := in.Email
	if email != nil {
		if !s.cfg.Modes.Email {
			fields["email"] = "email-based requests are not enabled"
		} else if !validEmail(*email) {
			fields["email"] = "not a valid email address"
		}
	}

	token := in.Token
	if token != nil && !s.cfg.Modes.Token {
		fields["token"] = "token-based requests are not enabled"
	}

	if userID == nil && email == nil {
		if _, seen := fields["email"]; !seen {
			fields["email"] = "an email address is required for unauthenticated requests"
		}
	}

	if len(in.ResourceIDs) == 0 {
		fields["resources"] = "at least one target resource is required"
	}
	if err := s.fields.Validate(in.Fields); err != nil {
		fields["fields"] = err.Error()
	}

	if len(fields) > 0 {
		return nil, oops.Code("VALIDATION_FAILED").Wrap(&ValidationError{Fields: fields})
	}

	// Requesters identified only by email get an opaque token here, so the
	// grants minted on acceptance share one stable identity across renewals.
	if userID == nil && token == nil {
		t := newToken()
		token = &t
	}

	return &accessctl.Request{
		UserID:      userID,
		Email:       email,
		Token:       token,
		Status:      accessctl.RequestNew,
		Recursive:   in.Recursive,
		Enabled:     true,
		Temporal:    in.Temporal,
		Start:       in.Start,
		End:         in.End,
		Name:        in.Name,
		Message:     in.Message,
		Fields:      in.Fields,
		ResourceIDs: in.ResourceIDs,
	}, nil
}

// Resolve sets a request's status. Admin only. Accepting a request upserts an
// enabled grant for every target resource, expanded to children when the
// request is recursive, all in one transaction. Rejection revokes nothing.
func (s *Service) Resolve(ctx context.Context, requestID ulid.ULID, next accessctl.RequestStatus, actor accessctl.Actor) error {
	if !actor.Admin {
		return oops.Code("FORBIDDEN").
			With("request_id", requestID.String()).
			Wrap(accessctl.ErrForbidden)
	}

	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if !req.Status.CanTransitionTo(next) {
		return oops.Code("REQUEST_TRANSITION_INVALID").
			With("request_id", requestID.String()).
			With("from", string(req.Status)).
			With("to", string(next)).
			Errorf("cannot resolve %s request to %s", req.Status, next)
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.requests.UpdateStatus(ctx, requestID, next); err != nil {
			return err
		}
		if next == accessctl.RequestAccepted {
			if err := s.provisionGrants(ctx, req); err != nil {
				return err
			}
		}
		return s.log.Append(ctx, &accessctl.LogEntry{
			UserID:     req.UserID,
			AccessID:   req.ID,
			AccessType: accessctl.LogRequest,
			Action:     string(next),
		})
	})
	if err != nil {
		return err
	}

	s.notify(ctx, requestID, VerbUpdated)
	return nil
}

// provisionGrants upserts one enabled grant per target resource, carrying the
// request's identity and date window.
func (s *Service) provisionGrants(ctx context.Context, req *accessctl.Request) error {
	targets, err := s.expandTargets(ctx, req)
	if err != nil {
		return err
	}
	for _, resourceID := range targets {
		grant := &accessctl.Grant{
			ResourceID: resourceID,
			UserID:     req.UserID,
			Enabled:    true,
			Temporal:   req.Temporal,
			StartDate:  req.Start,
			EndDate:    req.End,
		}
		if req.UserID == nil {
			grant.Token = req.Token
		}
		stored, err := s.grants.Upsert(ctx, grant)
		if err != nil {
			return err
		}
		err = s.log.Append(ctx, &accessctl.LogEntry{
			UserID:     req.UserID,
			AccessID:   stored.ID,
			AccessType: accessctl.LogAccess,
			Action:     "granted",
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// expandTargets returns the request's resource IDs, fanned out to descendants
// when the request is recursive: item set to items to media.
func (s *Service) expandTargets(ctx context.Context, req *accessctl.Request) ([]ulid.ULID, error) {
	if !req.Recursive {
		return req.ResourceIDs, nil
	}

	seen := make(map[ulid.ULID]bool)
	targets := make([]ulid.ULID, 0, len(req.ResourceIDs))
	queue := append([]ulid.ULID(nil), req.ResourceIDs...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		targets = append(targets, id)

		children, err := s.directory.Children(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			queue = append(queue, child.ID)
		}
	}
	return targets, nil
}

// notify emits a lifecycle event. Notification failure never fails the
// operation; the request is already persisted.
func (s *Service) notify(ctx context.Context, requestID ulid.ULID, verb Verb) {
	if err := s.notifier.Notify(ctx, requestID, verb); err != nil {
		errutil.LogError(s.logger, "request notification failed", err)
	}
}

// newToken mints an opaque grant token.
func newToken() string {
	return ulid.Make().String()
}
