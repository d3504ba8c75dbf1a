package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// 同步指标
	SyncBatchesTotal         prometheus.Counter
	SyncConnectionsProcessed prometheus.Counter
	SyncConnectionsFailed    prometheus.Counter
	MessagesCached           prometheus.Counter
	SyncBatchDuration        prometheus.Histogram

	// 聚合指标（按聚合类型区分）
	AggregationDuration *prometheus.HistogramVec

	// 出站指标
	OutboundSendTotal     prometheus.Counter
	OutboundSendErrors    prometheus.Counter
	OutboundEnvelopeBytes prometheus.Histogram

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		SyncBatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailsync_sync_batches_total",
			Help: "Total number of sync batches executed",
		}),
		SyncConnectionsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailsync_sync_connections_processed_total",
			Help: "Total number of mailbox connections processed across batches",
		}),
		SyncConnectionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailsync_sync_connections_failed_total",
			Help: "Total number of mailbox connections that failed to sync",
		}),
		MessagesCached: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailsync_messages_cached_total",
			Help: "Total number of messages written to the local cache",
		}),
		SyncBatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailsync_sync_batch_duration_seconds",
			Help:    "Duration of sync batches",
			Buckets: prometheus.DefBuckets,
		}),
		AggregationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailsync_aggregation_duration_seconds",
			Help:    "Duration of read-side aggregations",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		OutboundSendTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailsync_outbound_send_total",
			Help: "Total number of outbound messages successfully sent",
		}),
		OutboundSendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailsync_outbound_send_errors_total",
			Help: "Total number of outbound send failures",
		}),
		OutboundEnvelopeBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailsync_outbound_envelope_bytes",
			Help:    "Size of transport-encoded outbound envelopes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mailsync_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailsync_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Handler 返回 Prometheus 指标导出端点。
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
