// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

//go:build integration

package access_test

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gatekeep/gatekeep/internal/accessctl"
	"github.com/gatekeep/gatekeep/internal/queryfilter"
	"github.com/gatekeep/gatekeep/internal/request"
)

func newService(cfg request.Config) *request.Service {
	return request.NewService(request.Deps{
		Requests:  env.Requests,
		Grants:    env.Grants,
		Directory: env.Directory,
		Log:       env.Log,
		Tx:        env.Tx,
	}, cfg)
}

func newEvaluator(cfg accessctl.EvaluatorConfig) *accessctl.Evaluator {
	return accessctl.NewEvaluator(env.Statuses, env.Grants, env.Reserved, cfg)
}

var allModes = request.Config{
	Modes: accessctl.RequestModes{User: true, Email: true, Token: true},
}

var _ = Describe("Request lifecycle", func() {
	var (
		svc  *request.Service
		eval *accessctl.Evaluator
	)

	BeforeEach(func() {
		cleanupTables()
		svc = newService(allModes)
		eval = newEvaluator(accessctl.EvaluatorConfig{
			Mode:           accessctl.ModeLeveled,
			EnforceEmbargo: true,
		})
	})

	It("walks submit, accept, and evaluate end to end", func() {
		resourceID := createResource(accessctl.ResourceItem, false, nil)
		Expect(env.Statuses.Set(env.ctx, &accessctl.Status{
			ResourceID: resourceID,
			Level:      accessctl.LevelReserved,
		})).To(Succeed())

		userID := ulid.Make()
		actor := accessctl.Actor{UserID: &userID}
		resource, err := env.Directory.Get(env.ctx, resourceID)
		Expect(err).NotTo(HaveOccurred())

		allowed, err := eval.CanViewContent(env.ctx, resource, actor)
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeFalse(), "no grant yet")

		req, err := svc.Submit(env.ctx, actor, request.SubmitInput{
			ResourceIDs: []ulid.ULID{resourceID},
			Name:        "Jane Reader",
			Message:     "research access",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Status).To(Equal(accessctl.RequestNew))

		admin := accessctl.Actor{Admin: true}
		Expect(svc.Resolve(env.ctx, req.ID, accessctl.RequestAccepted, admin)).To(Succeed())

		allowed, err = eval.CanViewContent(env.ctx, resource, actor)
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeTrue(), "accepted request provisions the grant")

		stranger := ulid.Make()
		allowed, err = eval.CanViewContent(env.ctx, resource, accessctl.Actor{UserID: &stranger})
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeFalse(), "grant is bound to the requester")
	})

	It("fans a recursive accept out to children and media", func() {
		setID := createResource(accessctl.ResourceItemSet, false, nil)
		itemID := createResource(accessctl.ResourceItem, false, &setID)
		mediaID := createResource(accessctl.ResourceMedia, false, &itemID)

		userID := ulid.Make()
		actor := accessctl.Actor{UserID: &userID}
		req, err := svc.Submit(env.ctx, actor, request.SubmitInput{
			ResourceIDs: []ulid.ULID{setID},
			Recursive:   true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(svc.Resolve(env.ctx, req.ID, accessctl.RequestAccepted, accessctl.Actor{Admin: true})).To(Succeed())

		for _, id := range []ulid.ULID{setID, itemID, mediaID} {
			grant, err := env.Grants.FindByUser(env.ctx, id, userID)
			Expect(err).NotTo(HaveOccurred(), "grant expected for %s", id)
			Expect(grant.Enabled).To(BeTrue())
		}
	})

	It("rolls back the whole submission when a resource link fails", func() {
		resourceID := createResource(accessctl.ResourceItem, false, nil)
		email := "a@example.com"

		_, err := svc.Submit(env.ctx, accessctl.Anonymous(), request.SubmitInput{
			ResourceIDs: []ulid.ULID{resourceID, resourceID},
			Email:       &email,
		})
		Expect(err).To(HaveOccurred(), "duplicate link violates the join table key")

		var count int
		Expect(env.pool.QueryRow(env.ctx,
			`SELECT count(*) FROM access_requests`).Scan(&count)).To(Succeed())
		Expect(count).To(BeZero(), "nothing persists on rollback")
	})

	It("lets an anonymous visitor in with the minted token", func() {
		resourceID := createResource(accessctl.ResourceItem, false, nil)
		Expect(env.Statuses.Set(env.ctx, &accessctl.Status{
			ResourceID: resourceID,
			Level:      accessctl.LevelProtected,
		})).To(Succeed())

		email := "visitor@example.org"
		req, err := svc.Submit(env.ctx, accessctl.Anonymous(), request.SubmitInput{
			ResourceIDs: []ulid.ULID{resourceID},
			Email:       &email,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Token).NotTo(BeNil())
		Expect(svc.Resolve(env.ctx, req.ID, accessctl.RequestAccepted, accessctl.Actor{Admin: true})).To(Succeed())

		resource, err := env.Directory.Get(env.ctx, resourceID)
		Expect(err).NotTo(HaveOccurred())

		allowed, err := eval.CanViewContent(env.ctx, resource, accessctl.Actor{Token: *req.Token})
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeTrue())

		allowed, err = eval.CanViewContent(env.ctx, resource, accessctl.Anonymous())
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeFalse())
	})

	It("enforces the embargo window against real rows", func() {
		resourceID := createResource(accessctl.ResourceItem, false, nil)
		start := time.Now().Add(-time.Hour)
		end := time.Now().Add(time.Hour)
		Expect(env.Statuses.Set(env.ctx, &accessctl.Status{
			ResourceID:   resourceID,
			Level:        accessctl.LevelFree,
			EmbargoStart: &start,
			EmbargoEnd:   &end,
		})).To(Succeed())

		resource, err := env.Directory.Get(env.ctx, resourceID)
		Expect(err).NotTo(HaveOccurred())

		allowed, err := eval.CanViewContent(env.ctx, resource, accessctl.Anonymous())
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeFalse(), "embargo gates even free resources")

		allowed, err = eval.CanViewContent(env.ctx, resource, accessctl.Actor{Admin: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeTrue(), "admins bypass embargo")
	})

	It("honors the legacy marker in legacy-global mode", func() {
		legacyEval := newEvaluator(accessctl.EvaluatorConfig{Mode: accessctl.ModeLegacyGlobal})

		resourceID := createResource(accessctl.ResourceItem, false, nil)
		Expect(env.Reserved.Mark(env.ctx, resourceID, nil, nil)).To(Succeed())

		resource, err := env.Directory.Get(env.ctx, resourceID)
		Expect(err).NotTo(HaveOccurred())

		userID := ulid.Make()
		allowed, err := legacyEval.CanViewContent(env.ctx, resource, accessctl.Actor{UserID: &userID})
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeTrue(), "any authenticated actor passes in global mode")

		allowed, err = legacyEval.CanViewContent(env.ctx, resource, accessctl.Anonymous())
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeFalse())
	})
})

var _ = Describe("Visibility predicate", func() {
	BeforeEach(cleanupTables)

	// visibleIDs runs the predicate against the resources table.
	visibleIDs := func(p queryfilter.Predicate) []string {
		query := fmt.Sprintf("SELECT r.id FROM resources r WHERE %s ORDER BY r.id", p.SQL)
		rows, err := env.pool.Query(env.ctx, query, p.Args...)
		Expect(err).NotTo(HaveOccurred())
		defer rows.Close()

		var ids []string
		for rows.Next() {
			var id string
			Expect(rows.Scan(&id)).To(Succeed())
			ids = append(ids, id)
		}
		Expect(rows.Err()).NotTo(HaveOccurred())
		return ids
	}

	It("matches the evaluator's record decisions row for row", func() {
		public := createResource(accessctl.ResourceItem, true, nil)
		granted := createResource(accessctl.ResourceItem, false, nil)
		hidden := createResource(accessctl.ResourceItem, false, nil)
		forbidden := createResource(accessctl.ResourceItem, false, nil)

		userID := ulid.Make()
		Expect(env.Statuses.Set(env.ctx, &accessctl.Status{
			ResourceID: forbidden,
			Level:      accessctl.LevelForbidden,
		})).To(Succeed())
		_, err := env.Grants.Upsert(env.ctx, &accessctl.Grant{
			ResourceID: granted,
			UserID:     &userID,
			Enabled:    true,
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Grants.Upsert(env.ctx, &accessctl.Grant{
			ResourceID: forbidden,
			UserID:     &userID,
			Enabled:    true,
		})
		Expect(err).NotTo(HaveOccurred())

		builder := queryfilter.NewBuilder(accessctl.ModeLeveled)

		ids := visibleIDs(builder.Visibility(accessctl.Actor{UserID: &userID}, 0))
		Expect(ids).To(ContainElements(public.String(), granted.String()))
		Expect(ids).NotTo(ContainElement(hidden.String()), "no grant, not public")
		Expect(ids).NotTo(ContainElement(forbidden.String()), "forbidden wins over the grant")

		ids = visibleIDs(builder.Visibility(accessctl.Anonymous(), 0))
		Expect(ids).To(ConsistOf(public.String()))

		ids = visibleIDs(builder.Visibility(accessctl.Actor{Admin: true}, 0))
		Expect(ids).To(HaveLen(4))
	})

	It("admits marked resources in legacy mode", func() {
		public := createResource(accessctl.ResourceItem, true, nil)
		marked := createResource(accessctl.ResourceItem, false, nil)
		createResource(accessctl.ResourceItem, false, nil) // unmarked, invisible
		Expect(env.Reserved.Mark(env.ctx, marked, nil, nil)).To(Succeed())

		builder := queryfilter.NewBuilder(accessctl.ModeLegacyGlobal)
		ids := visibleIDs(builder.Visibility(accessctl.Anonymous(), 0))
		Expect(ids).To(ConsistOf(public.String(), marked.String()))
	})
})
