// Package metrics exposes Prometheus counters for the identity subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinkDecisions counts link outcomes by provider and action or rejection.
	LinkDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "identity",
		Name:      "link_decisions_total",
		Help:      "Account link decisions by provider and outcome.",
	}, []string{"provider", "outcome"})

	// Merges counts completed and failed account merges.
	Merges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "identity",
		Name:      "merges_total",
		Help:      "Account merges by result.",
	}, []string{"result"})

	// MergedProcesses counts processes moved by merges, split by whether they
	// replaced a colliding process of the surviving account.
	MergedProcesses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "identity",
		Name:      "merged_processes_total",
		Help:      "Processes re-parented during merges.",
	}, []string{"collision"})

	GhostAccountsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "identity",
		Name:      "ghost_accounts_created_total",
		Help:      "Ghost accounts created from Discord bot usage.",
	})

	LinkRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "identity",
		Name:      "link_retries_total",
		Help:      "Link decisions re-run after a uniqueness conflict.",
	})
)
