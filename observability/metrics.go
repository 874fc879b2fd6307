package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	claimsMetricsOnce sync.Once
	claimsRegistry    *ClaimsMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording API
// activity per module and method.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lockdrop",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lockdrop",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lockdrop",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lockdrop",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an API request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// ClaimsMetrics tracks claim outcomes and the auxiliary flows around them.
type ClaimsMetrics struct {
	claims       *prometheus.CounterVec
	eligibility  *prometheus.CounterVec
	restrictions *prometheus.CounterVec
	randomness   *prometheus.CounterVec
	credit       prometheus.Histogram
}

// Claims returns the lazily-initialised claims metrics registry.
func Claims() *ClaimsMetrics {
	claimsMetricsOnce.Do(func() {
		claimsRegistry = &ClaimsMetrics{
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lockdrop",
				Subsystem: "claims",
				Name:      "attempts_total",
				Help:      "Claim attempts segmented by flow and outcome.",
			}, []string{"flow", "outcome"}),
			eligibility: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lockdrop",
				Subsystem: "claims",
				Name:      "eligibility_queries_total",
				Help:      "Eligibility queries segmented by kind.",
			}, []string{"kind"}),
			restrictions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lockdrop",
				Subsystem: "whitelist",
				Name:      "changes_total",
				Help:      "Restriction batch changes segmented by action.",
			}, []string{"action"}),
			randomness: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lockdrop",
				Subsystem: "randomness",
				Name:      "requests_total",
				Help:      "Randomness requests and fulfilments segmented by stage and outcome.",
			}, []string{"stage", "outcome"}),
			credit: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "lockdrop",
				Subsystem: "credit",
				Name:      "valuation_duration_seconds",
				Help:      "Latency of credit valuations including the lock pool lookup.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			claimsRegistry.claims,
			claimsRegistry.eligibility,
			claimsRegistry.restrictions,
			claimsRegistry.randomness,
			claimsRegistry.credit,
		)
	})
	return claimsRegistry
}

// RecordClaim increments the claim counter. outcome is "success" or a stable
// failure reason.
func (m *ClaimsMetrics) RecordClaim(flow, outcome string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(normalizeLabel(flow), normalizeLabel(outcome)).Inc()
}

func (m *ClaimsMetrics) RecordEligibility(kind string) {
	if m == nil {
		return
	}
	m.eligibility.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *ClaimsMetrics) RecordRestriction(action string) {
	if m == nil {
		return
	}
	m.restrictions.WithLabelValues(normalizeLabel(action)).Inc()
}

func (m *ClaimsMetrics) RecordRandomness(stage, outcome string) {
	if m == nil {
		return
	}
	m.randomness.WithLabelValues(normalizeLabel(stage), normalizeLabel(outcome)).Inc()
}

func (m *ClaimsMetrics) ObserveCredit(d time.Duration) {
	if m == nil {
		return
	}
	m.credit.Observe(d.Seconds())
}

// ClaimCounter exposes the underlying vector for tests.
func (m *ClaimsMetrics) ClaimCounter() *prometheus.CounterVec { return m.claims }

func normalizeLabel(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}
