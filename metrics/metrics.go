// Package metrics holds the prometheus collectors of the attestation service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSigned    = "signed"
	OutcomeRejected  = "rejected"
	OutcomeIntegrity = "integrity_failure"
	OutcomeError     = "error"

	OutcomeValid     = "valid"
	OutcomeInvalid   = "invalid"
	OutcomeMalformed = "malformed"
)

// Collectors groups every metric the service exports. A nil *Collectors is
// valid and records nothing.
type Collectors struct {
	attest         *prometheus.CounterVec
	attestDuration prometheus.Histogram
	verify         *prometheus.CounterVec
	sinkFailures   *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	grpcRequests   *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		attest: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echorank",
			Name:      "attest_total",
			Help:      "Attestation requests by outcome.",
		}, []string{"outcome"}),
		attestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "echorank",
			Name:      "attest_duration_seconds",
			Help:      "Time to hash, sign and self-verify one attestation.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		verify: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echorank",
			Name:      "verify_total",
			Help:      "Verification requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		sinkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echorank",
			Name:      "sink_failures_total",
			Help:      "Attestation records a sink failed to accept.",
		}, []string{"sink"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echorank",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "echorank",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		grpcRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echorank",
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "gRPC requests by method and status code.",
		}, []string{"method", "code"}),
	}
}

func (c *Collectors) ObserveAttest(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.attest.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSigned {
		c.attestDuration.Observe(d.Seconds())
	}
}

// ObserveVerify records one verification; kind is "single" or "aggregate".
func (c *Collectors) ObserveVerify(kind, outcome string) {
	if c == nil {
		return
	}
	c.verify.WithLabelValues(kind, outcome).Inc()
}

func (c *Collectors) ObserveSinkFailure(sink string) {
	if c == nil {
		return
	}
	c.sinkFailures.WithLabelValues(sink).Inc()
}

func (c *Collectors) ObserveHTTP(route, method string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (c *Collectors) ObserveGRPC(method, code string) {
	if c == nil {
		return
	}
	c.grpcRequests.WithLabelValues(method, code).Inc()
}
