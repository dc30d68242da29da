// Package monitoring 提供服务指标与模型文件监控
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spendwise"

// Metrics 服务指标收集器
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	predictions    *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	artifactsStale prometheus.Gauge
	artifactLoaded *prometheus.GaugeVec
}

// NewMetrics 创建指标收集器，使用独立的 registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"route"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served by endpoint and predicted label.",
		}, []string{"endpoint", "label"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_lookups_total",
			Help:      "Prediction cache lookups by endpoint and result.",
		}, []string{"endpoint", "result"}),
		artifactsStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifacts_stale",
			Help:      "1 when artifact files changed on disk after they were loaded.",
		}),
		artifactLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_trained_timestamp_seconds",
			Help:      "Training time of each loaded artifact.",
		}, []string{"artifact"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.predictions,
		m.cacheLookups,
		m.artifactsStale,
		m.artifactLoaded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) ObservePrediction(endpoint, label string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(endpoint, label).Inc()
}

func (m *Metrics) ObserveCache(endpoint string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(endpoint, result).Inc()
}

func (m *Metrics) SetArtifactsStale(stale bool) {
	if m == nil {
		return
	}
	if stale {
		m.artifactsStale.Set(1)
	} else {
		m.artifactsStale.Set(0)
	}
}

func (m *Metrics) SetArtifactTrainedAt(artifact string, trainedAt time.Time) {
	if m == nil {
		return
	}
	m.artifactLoaded.WithLabelValues(artifact).Set(float64(trainedAt.Unix()))
}
