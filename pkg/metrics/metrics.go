// Package metrics exposes Prometheus counters and histograms for the
// transaction engine, resolver, and repository sync, so an operator can
// watch install/remove/upgrade throughput and failure rates over time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector groups the counters and histograms rookpkg's components
// report into. A nil *Collector is not valid; use NewCollector or
// NewNopCollector.
type Collector struct {
	TransactionsTotal    *prometheus.CounterVec
	TransactionDuration  *prometheus.HistogramVec
	RollbackTotal        *prometheus.CounterVec
	ResolveTotal         *prometheus.CounterVec
	ResolveDuration      prometheus.Histogram
	RepoSyncTotal        *prometheus.CounterVec
	SignatureVerifyTotal *prometheus.CounterVec
}

// NewCollector builds a Collector and registers its metrics against reg.
// Passing prometheus.NewRegistry() keeps rookpkg's metrics isolated from
// the default global registry, which matters when multiple invocations
// share a process (e.g. under test).
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		TransactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rookpkg",
			Subsystem: "txn",
			Name:      "transactions_total",
			Help:      "Transactions processed, partitioned by final state.",
		}, []string{"state"}),
		TransactionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rookpkg",
			Subsystem: "txn",
			Name:      "duration_seconds",
			Help:      "Wall-clock time to execute a transaction's operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		RollbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rookpkg",
			Subsystem: "txn",
			Name:      "rollbacks_total",
			Help:      "Rollback attempts, partitioned by outcome (rolled_back, failed).",
		}, []string{"outcome"}),
		ResolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rookpkg",
			Subsystem: "resolver",
			Name:      "resolves_total",
			Help:      "Dependency resolution attempts, partitioned by outcome.",
		}, []string{"outcome"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rookpkg",
			Subsystem: "resolver",
			Name:      "duration_seconds",
			Help:      "Wall-clock time to resolve a requested package set.",
			Buckets:   prometheus.DefBuckets,
		}),
		RepoSyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rookpkg",
			Subsystem: "reposync",
			Name:      "updates_total",
			Help:      "Per-repository sync attempts, partitioned by outcome.",
		}, []string{"repository", "outcome"}),
		SignatureVerifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rookpkg",
			Subsystem: "trust",
			Name:      "verifications_total",
			Help:      "Signature verifications, partitioned by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.TransactionsTotal,
		c.TransactionDuration,
		c.RollbackTotal,
		c.ResolveTotal,
		c.ResolveDuration,
		c.RepoSyncTotal,
		c.SignatureVerifyTotal,
	)

	return c
}

// NewNopCollector returns a Collector registered against a fresh private
// registry, for callers (tests, one-shot CLI invocations that don't
// expose /metrics) that need a valid Collector without wiring up an
// exporter.
func NewNopCollector() *Collector {
	return NewCollector(prometheus.NewRegistry())
}
