package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const namespace = "lendcore"

type httpMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	httpMetricsOnce sync.Once
	httpRegistry    *httpMetrics

	bankMetricsOnce sync.Once
	bankRegistry    *BankMetricsRegistry
)

// HTTPMetrics returns the lazily-initialised registry for gateway routes.
func HTTPMetrics() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total gateway requests segmented by route and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"route"}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.latency, httpRegistry.throttles)
	})
	return httpRegistry
}

// Observe records a completed request. status is the code written to the client.
func (m *httpMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle counts a rate-limited request.
func (m *httpMetrics) RecordThrottle(route string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.throttles.WithLabelValues(route).Inc()
}

// BankMetricsRegistry tracks spell executions. It satisfies bank.Metrics.
type BankMetricsRegistry struct {
	executes *prometheus.CounterVec
	duration *prometheus.HistogramVec

	otelExecutes metric.Int64Counter
}

// BankMetrics returns the execution metrics registry. Executions are also
// mirrored to the global OpenTelemetry meter so OTLP exports carry them.
func BankMetrics() *BankMetricsRegistry {
	bankMetricsOnce.Do(func() {
		bankRegistry = &BankMetricsRegistry{
			executes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bank",
				Name:      "executes_total",
				Help:      "Spell executions segmented by spell, outcome, and failure reason.",
			}, []string{"spell", "outcome", "reason"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "bank",
				Name:      "execute_duration_seconds",
				Help:      "Wall time spent inside Execute, including the solvency check.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			}, []string{"spell"}),
		}
		counter, err := otel.Meter("lendcore/bank").Int64Counter("lendcore.bank.executes",
			metric.WithDescription("Spell executions by outcome"))
		if err == nil {
			bankRegistry.otelExecutes = counter
		}
		prometheus.MustRegister(bankRegistry.executes, bankRegistry.duration)
	})
	return bankRegistry
}

// ObserveExecute records one Execute call.
func (m *BankMetricsRegistry) ObserveExecute(spell, outcome, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if spell == "" {
		spell = "unknown"
	}
	if reason == "" {
		reason = "none"
	}
	m.executes.WithLabelValues(spell, outcome, reason).Inc()
	m.duration.WithLabelValues(spell).Observe(elapsed.Seconds())
	if m.otelExecutes != nil {
		m.otelExecutes.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("spell", spell),
			attribute.String("outcome", outcome),
		))
	}
}
