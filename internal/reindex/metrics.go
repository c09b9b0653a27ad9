// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package reindex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reindexResources = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeep_reindex_resources_total",
		Help: "Resources handled by reindex runs, by outcome.",
	},
	[]string{"outcome"},
)
