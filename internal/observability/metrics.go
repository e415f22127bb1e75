// Package observability Prometheus 指标、OpenTelemetry 链路与 Sentry 初始化
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics RED 指标集合，每个 registry 一份
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec   // http_requests_total{method,route,status}
	httpDuration *prometheus.HistogramVec // http_request_duration_seconds{method,route}

	usecaseRequests *prometheus.CounterVec   // usecase_requests_total{use_case,outcome}
	usecaseDuration *prometheus.HistogramVec // usecase_duration_seconds{use_case}

	gatewayRequests *prometheus.CounterVec   // payment_gateway_requests_total{operation,outcome}
	gatewayDuration *prometheus.HistogramVec // payment_gateway_duration_seconds{operation}

	outboxEvents *prometheus.CounterVec // outbox_events_total{topic,outcome}
	outboxLag    prometheus.Histogram   // outbox_delivery_lag_seconds
}

// NewMetrics 在新 registry 上注册全部指标及 Go/进程指标
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		usecaseRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "usecase_requests_total", Help: "Use case executions by outcome.",
		}, []string{"use_case", "outcome"}),
		usecaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "usecase_duration_seconds", Help: "Use case latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"use_case"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "payment_gateway_requests_total", Help: "Payment processor calls by outcome.",
		}, []string{"operation", "outcome"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "payment_gateway_duration_seconds", Help: "Payment processor call latency.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"operation"}),
		outboxEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbox_events_total", Help: "Outbox deliveries by topic and outcome.",
		}, []string{"topic", "outcome"}),
		outboxLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "outbox_delivery_lag_seconds", Help: "Time from event write to delivery.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	reg.MustRegister(
		m.httpRequests, m.httpDuration,
		m.usecaseRequests, m.usecaseDuration,
		m.gatewayRequests, m.gatewayDuration,
		m.outboxEvents, m.outboxLag,
	)
	return m
}

// Handler 以 Prometheus 格式暴露指标
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 底层 registry，测试用
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveUseCase(useCase, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.usecaseRequests.WithLabelValues(useCase, outcome).Inc()
	m.usecaseDuration.WithLabelValues(useCase).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveGateway(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(operation, outcome).Inc()
	m.gatewayDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveOutbox(topic, outcome string, lag time.Duration) {
	if m == nil {
		return
	}
	m.outboxEvents.WithLabelValues(topic, outcome).Inc()
	if outcome == "delivered" {
		m.outboxLag.Observe(lag.Seconds())
	}
}
