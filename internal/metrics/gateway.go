package metrics

import "github.com/prometheus/client_golang/prometheus"

// Gateway Prometheus metrics.
var (
	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "raggate",
			Name:      "result_cache_total",
			Help:      "Result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	SearchErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "raggate",
			Name:      "search_backend_errors_total",
			Help:      "Search backend failures after retries were exhausted",
		},
	)

	CircuitOpenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "raggate",
			Name:      "circuit_open_total",
			Help:      "Requests short-circuited by the open breaker",
		},
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "raggate",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "raggate",
			Name:      "llm_requests_total",
			Help:      "LLM completion calls by operation and outcome",
		},
		[]string{"op", "status"}, // op: "rerank" / "answer", status: "success" / "error"
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "raggate",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "raggate",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)
)

var gatewayMetricsRegistered bool

// RegisterGatewayMetrics registers gateway metrics. Must be called once from main.
func RegisterGatewayMetrics() {
	if gatewayMetricsRegistered {
		return
	}
	prometheus.MustRegister(CacheTotal)
	prometheus.MustRegister(SearchErrorsTotal)
	prometheus.MustRegister(CircuitOpenTotal)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	gatewayMetricsRegistered = true
}
