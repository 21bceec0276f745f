/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GenerationRunsTotal counts completed generation runs by outcome.
	GenerationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plgen_generation_runs_total",
		Help: "Playlist generation runs by station and outcome.",
	}, []string{"station", "outcome"})

	// GenerationDuration observes wall time per generation run.
	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plgen_generation_duration_seconds",
		Help:    "Wall time of playlist generation runs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"station"})

	// SlotsFilledTotal counts slots that received a selection.
	SlotsFilledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plgen_slots_filled_total",
		Help: "Clock slots filled with a selection.",
	}, []string{"station"})

	// SlotsSkippedTotal counts slots left empty under the skip policy.
	SlotsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plgen_slots_skipped_total",
		Help: "Clock slots skipped for lack of eligible candidates.",
	}, []string{"station"})

	// EligibilityRejectionsTotal counts rejected candidates per rule.
	EligibilityRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plgen_eligibility_rejections_total",
		Help: "Candidates rejected during eligibility filtering, by rule.",
	}, []string{"station", "rule"})

	// RunLockContentionTotal counts runs that had to wait for or lost
	// the station lock.
	RunLockContentionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plgen_run_lock_contention_total",
		Help: "Generation runs that could not immediately acquire the station lock.",
	}, []string{"station"})
)

// Handler exposes the prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
