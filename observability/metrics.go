package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type governanceMetrics struct {
	shares            *prometheus.CounterVec
	signatureDuration prometheus.Histogram
	proposals         *prometheus.CounterVec
	slashes           *prometheus.CounterVec
	allocationDenials *prometheus.CounterVec
}

var (
	governanceOnce sync.Once
	governanceReg  *governanceMetrics
)

// Governance returns the lazily-initialised metrics registry for the
// governance and threshold-signing subsystem.
func Governance() *governanceMetrics {
	governanceOnce.Do(func() {
		governanceReg = &governanceMetrics{
			shares: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "subnetgov",
				Subsystem: "threshold",
				Name:      "shares_total",
				Help:      "Signature share submissions segmented by outcome.",
			}, []string{"outcome"}),
			signatureDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "subnetgov",
				Subsystem: "threshold",
				Name:      "request_duration_seconds",
				Help:      "Time from signature request creation to completion.",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
			}),
			proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "subnetgov",
				Subsystem: "dao",
				Name:      "proposals_total",
				Help:      "Resolved governance proposals segmented by outcome.",
			}, []string{"outcome"}),
			slashes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "subnetgov",
				Subsystem: "slashing",
				Name:      "events_total",
				Help:      "Recorded slashing events segmented by severity.",
			}, []string{"severity"}),
			allocationDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "subnetgov",
				Subsystem: "resources",
				Name:      "allocation_denials_total",
				Help:      "Denied resource allocations segmented by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			governanceReg.shares,
			governanceReg.signatureDuration,
			governanceReg.proposals,
			governanceReg.slashes,
			governanceReg.allocationDenials,
		)
	})
	return governanceReg
}

// RecordShare counts one share submission with the supplied outcome
// (accepted, duplicate, invalid, expired, ineligible).
func (m *governanceMetrics) RecordShare(outcome string) {
	if m == nil {
		return
	}
	m.shares.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// RecordSignatureDuration observes the wall time a request took to complete.
func (m *governanceMetrics) RecordSignatureDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.signatureDuration.Observe(d.Seconds())
}

// RecordProposal counts one resolved proposal by outcome.
func (m *governanceMetrics) RecordProposal(outcome string) {
	if m == nil {
		return
	}
	m.proposals.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// RecordSlash counts one slashing event by severity.
func (m *governanceMetrics) RecordSlash(severity string) {
	if m == nil {
		return
	}
	m.slashes.WithLabelValues(normalizeLabel(severity)).Inc()
}

// RecordAllocationDenial counts one denied allocation by reason.
func (m *governanceMetrics) RecordAllocationDenial(reason string) {
	if m == nil {
		return
	}
	m.allocationDenials.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(v string) string {
	normalized := strings.TrimSpace(strings.ToLower(v))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
