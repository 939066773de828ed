package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts processed requests by outcome.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xjp_requests_total",
		Help: "Total number of requests processed",
	}, []string{"tenant_id", "logical_model", "provider", "status"})

	// RequestDuration observes end-to-end request latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xjp_request_duration_seconds",
		Help:    "Request duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"tenant_id", "logical_model", "provider", "stream"})

	// TokensTotal counts tokens by type (prompt/completion/reasoning/cached).
	TokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xjp_tokens_total",
		Help: "Total number of tokens processed",
	}, []string{"tenant_id", "logical_model", "provider", "type"})

	// ActiveConnections tracks in-flight relay requests.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xjp_active_connections",
		Help: "Number of active connections",
	})

	// RateLimitHits counts denied requests per tenant.
	RateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xjp_rate_limit_hits_total",
		Help: "Total number of rate limit hits",
	}, []string{"tenant_id"})

	// AuthErrors counts failed authentications by failure kind.
	AuthErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xjp_auth_errors_total",
		Help: "Total number of authentication errors",
	}, []string{"type"})
)

// RecordUsage bumps the token counters for one billed request.
func RecordUsage(tenantID, logicalModel, provider string, prompt, completion, reasoning, cached int64) {
	TokensTotal.WithLabelValues(tenantID, logicalModel, provider, "prompt").Add(float64(prompt))
	TokensTotal.WithLabelValues(tenantID, logicalModel, provider, "completion").Add(float64(completion))
	if reasoning > 0 {
		TokensTotal.WithLabelValues(tenantID, logicalModel, provider, "reasoning").Add(float64(reasoning))
	}
	if cached > 0 {
		TokensTotal.WithLabelValues(tenantID, logicalModel, provider, "cached").Add(float64(cached))
	}
}
