package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes.
const (
	LoginCreated   = "created"
	LoginReturning = "returning"
	LoginRejected  = "rejected"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Logins          *prometheus.CounterVec
	ProfileUpdates  *prometheus.CounterVec
	TokenFailures   *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	EndpointLatency *prometheus.HistogramVec

	RateLimitDecisions *prometheus.CounterVec
	RateLimitDegraded  prometheus.Gauge

	AuditDropped prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_logins_total",
			Help: "Student logins by outcome",
		}, []string{"outcome"}), // outcome: "created", "returning", "rejected"

		ProfileUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_profile_updates_total",
			Help: "Profile update attempts by outcome",
		}, []string{"outcome"}),

		TokenFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_token_verification_failures_total",
			Help: "ID token verification failures by reason",
		}, []string{"reason"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_profile_cache_lookups_total",
			Help: "Profile cache lookups by result",
		}, []string{"result"}),

		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rollcall_endpoint_duration_seconds",
			Help:    "HTTP endpoint latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"endpoint"}),

		RateLimitDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_ratelimit_decisions_total",
			Help: "Rate limit checks by route and outcome",
		}, []string{"route", "outcome"}), // outcome: "allowed", "limited", "error"

		RateLimitDegraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_ratelimit_degraded",
			Help: "1 while rate limiting runs on the in-memory fallback",
		}),

		AuditDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_audit_events_dropped_total",
			Help: "Audit events evicted from a full async buffer before delivery",
		}),
	}
}

func (m *Metrics) IncrementLogin(outcome string) {
	if m != nil {
		m.Logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementProfileUpdate(outcome string) {
	if m != nil {
		m.ProfileUpdates.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementTokenFailure(reason string) {
	if m != nil {
		m.TokenFailures.WithLabelValues(reason).Inc()
	}
}

// IncrementCacheLookup records a cache hit (true) or miss (false).
func (m *Metrics) IncrementCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveEndpointLatency records how long a request to endpoint took.
func (m *Metrics) ObserveEndpointLatency(endpoint string, d time.Duration) {
	if m != nil {
		m.EndpointLatency.WithLabelValues(endpoint).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementRateLimitDecision(route, outcome string) {
	if m != nil {
		m.RateLimitDecisions.WithLabelValues(route, outcome).Inc()
	}
}

func (m *Metrics) IncrementAuditDropped() {
	if m != nil {
		m.AuditDropped.Inc()
	}
}

func (m *Metrics) SetRateLimitDegraded(degraded bool) {
	if m == nil {
		return
	}
	v := 0.0
	if degraded {
		v = 1
	}
	m.RateLimitDegraded.Set(v)
}
