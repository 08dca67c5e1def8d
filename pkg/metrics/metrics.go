// Package metrics 注册服务使用的 Prometheus 指标并提供 /metrics handler。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 持有所有 collector，使用独立 registry，避免测试间互相污染。
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	IngestTotal      *prometheus.CounterVec
	IngestChunks     prometheus.Counter
	QueryTotal       *prometheus.CounterVec
	ExternalDuration *prometheus.HistogramVec
}

// New 创建并注册全部指标。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Number of HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		IngestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docqa_ingest_total",
			Help: "Document ingestions by result.",
		}, []string{"result"}),
		IngestChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docqa_ingest_chunks_total",
			Help: "Chunks written to the vector store.",
		}),
		QueryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docqa_query_total",
			Help: "Questions answered by result.",
		}, []string{"result"}),
		ExternalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docqa_external_call_duration_seconds",
			Help:    "Latency of calls to extraction, embedding, vector store and generation backends.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.IngestTotal,
		m.IngestChunks,
		m.QueryTotal,
		m.ExternalDuration,
	)
	return m
}

// Handler 返回暴露该 registry 的 http.Handler。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStage 记录一次外部调用耗时。m 为 nil 时什么也不做。
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.ExternalDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// IncIngest 按结果累计入库次数，成功时同时累计分块数。
func (m *Metrics) IncIngest(result string, chunks int) {
	if m == nil {
		return
	}
	m.IngestTotal.WithLabelValues(result).Inc()
	if chunks > 0 {
		m.IngestChunks.Add(float64(chunks))
	}
}

// IncQuery 按结果累计问答次数。
func (m *Metrics) IncQuery(result string) {
	if m == nil {
		return
	}
	m.QueryTotal.WithLabelValues(result).Inc()
}

// Registry 主要供测试读取指标。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
