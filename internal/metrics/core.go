// Package metrics exposes prometheus observers for the blockchain core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	admissionSubmitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wotmesh",
		Subsystem: "admission",
		Name:      "submit_total",
		Help:      "Count of block submissions.",
	}, []string{"currency", "lane", "status"})

	admissionSubmitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wotmesh",
		Subsystem: "admission",
		Name:      "submit_duration_seconds",
		Help:      "Duration of block submissions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"currency", "lane", "status"})

	admissionRevertTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wotmesh",
		Subsystem: "admission",
		Name:      "revert_total",
		Help:      "Count of head reverts.",
	}, []string{"currency", "status"})

	switchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wotmesh",
		Subsystem: "switcher",
		Name:      "attempts_total",
		Help:      "Count of fork-switch evaluations.",
	}, []string{"currency", "status", "switched"})

	switchCandidates = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wotmesh",
		Subsystem: "switcher",
		Name:      "candidates",
		Help:      "Number of eligible side branches per evaluation.",
		Buckets:   prometheus.LinearBuckets(0, 1, 8),
	}, []string{"currency"})

	proverRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wotmesh",
		Subsystem: "prover",
		Name:      "runs_total",
		Help:      "Count of generation attempts by outcome.",
	}, []string{"currency", "reason", "status"})

	proverRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wotmesh",
		Subsystem: "prover",
		Name:      "run_duration_seconds",
		Help:      "Duration of generation attempts.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"currency", "reason", "status"})

	maintainerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wotmesh",
		Subsystem: "maintainer",
		Name:      "runs_total",
		Help:      "Count of storage compaction runs.",
	}, []string{"currency", "status"})

	maintainerRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wotmesh",
		Subsystem: "maintainer",
		Name:      "run_duration_seconds",
		Help:      "Duration of storage compaction runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"currency", "status"})
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Core tracks metrics for the blockchain core services of one currency.
type Core struct {
	currency string
}

// NewCore constructs a Core observer.
func NewCore(currency string) *Core {
	if currency == "" {
		currency = "unknown"
	}
	return &Core{currency: currency}
}

// ObserveSubmit records a block submission outcome.
func (m Core) ObserveSubmit(err error, forked bool, started time.Time) {
	lane := "main"
	if forked {
		lane = "fork"
	}
	admissionSubmitTotal.WithLabelValues(m.currency, lane, status(err)).Inc()
	admissionSubmitDuration.WithLabelValues(m.currency, lane, status(err)).
		Observe(time.Since(started).Seconds())
}

// ObserveRevert records a head revert outcome.
func (m Core) ObserveRevert(err error, _ time.Time) {
	admissionRevertTotal.WithLabelValues(m.currency, status(err)).Inc()
}

// ObserveSwitch records a fork-switch evaluation.
func (m Core) ObserveSwitch(err error, candidates int, switched bool, _ time.Time) {
	switchAttemptsTotal.WithLabelValues(m.currency, status(err), boolLabel(switched)).Inc()
	switchCandidates.WithLabelValues(m.currency).Observe(float64(candidates))
}

// ObserveProof records a generation attempt.
func (m Core) ObserveProof(reason string, err error, started time.Time) {
	if reason == "" {
		reason = "proved"
	}
	proverRunsTotal.WithLabelValues(m.currency, reason, status(err)).Inc()
	proverRunDuration.WithLabelValues(m.currency, reason, status(err)).
		Observe(time.Since(started).Seconds())
}

// ObserveClean records a storage compaction run.
func (m Core) ObserveClean(err error, started time.Time) {
	maintainerRunsTotal.WithLabelValues(m.currency, status(err)).Inc()
	maintainerRunDuration.WithLabelValues(m.currency, status(err)).
		Observe(time.Since(started).Seconds())
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
