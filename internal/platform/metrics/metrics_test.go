package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementLogin(LoginCreated)
	m.IncrementLogin(LoginCreated)
	m.IncrementLogin(LoginReturning)
	m.IncrementProfileUpdate("ok")
	m.IncrementTokenFailure("expired")
	m.IncrementCacheLookup(true)
	m.IncrementCacheLookup(false)
	m.IncrementCacheLookup(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Logins.WithLabelValues(LoginCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues(LoginReturning)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProfileUpdates.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenFailures.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestMetrics_Latency(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveEndpointLatency("POST /auth/verify", 20*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.EndpointLatency))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementLogin(LoginRejected)
		m.IncrementProfileUpdate("ok")
		m.IncrementTokenFailure("invalid")
		m.IncrementCacheLookup(true)
		m.ObserveEndpointLatency("x", time.Second)
		m.IncrementRateLimitDecision("x", "allowed")
		m.SetRateLimitDegraded(true)
		m.IncrementAuditDropped()
	})
}

func TestMetrics_AuditDropped(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementAuditDropped()
	m.IncrementAuditDropped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuditDropped))
}

func TestMetrics_RateLimit(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementRateLimitDecision("POST /auth/verify", "limited")
	m.SetRateLimitDegraded(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitDecisions.WithLabelValues("POST /auth/verify", "limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitDegraded))

	m.SetRateLimitDegraded(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RateLimitDegraded))
}
