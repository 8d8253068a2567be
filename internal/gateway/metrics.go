package gateway

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はゲートウェイのPrometheusメトリクス。
// サーバーごとに専用のレジストリを持ち、テストで複数生成しても衝突しない。
type Metrics struct {
	registry         *prometheus.Registry
	decisions        *prometheus.CounterVec
	upstreamCalls    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

// NewMetrics はメトリクスを生成してレジストリに登録する。
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aviary_gateway_decisions_total",
				Help: "Total number of gate decisions by kind and route kind.",
			},
			[]string{"decision", "route"},
		),
		upstreamCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aviary_gateway_upstream_calls_total",
				Help: "Total number of identity service calls by call and result.",
			},
			[]string{"call", "result"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aviary_gateway_upstream_call_duration_seconds",
				Help:    "Duration of identity service calls in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"call"},
		),
	}
	m.registry.MustRegister(
		m.decisions,
		m.upstreamCalls,
		m.upstreamDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveDecision はゲートの判定を記録する。
func (m *Metrics) ObserveDecision(kind DecisionKind, route RouteKind) {
	m.decisions.WithLabelValues(kind.String(), route.String()).Inc()
}

// ObserveUpstream は上流呼び出しの結果と所要時間を記録する。identity.Observerを実装する。
func (m *Metrics) ObserveUpstream(call, result string, elapsed time.Duration) {
	m.upstreamCalls.WithLabelValues(call, result).Inc()
	m.upstreamDuration.WithLabelValues(call).Observe(elapsed.Seconds())
}

// Handler は/metrics用のHTTPハンドラを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
