package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shamirnfs/shamirnfs/pkg/metrics"
)

type nfsMetrics struct {
	requestDuration    *prometheus.HistogramVec
	requestsTotal      *prometheus.CounterVec
	connectionsTotal   prometheus.Counter
	connectionsClosed  prometheus.Counter
	activeConnections  prometheus.Gauge
}

// NewNFSMetrics builds the Prometheus-backed NFSMetrics, or nil if
// metrics.InitRegistry has not been called (zero overhead when
// disabled).
func NewNFSMetrics() metrics.NFSMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &nfsMetrics{
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shamirnfs_request_duration_seconds",
			Help:    "NFSv3/MOUNT request latency by procedure and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"procedure", "status"}),
		requestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shamirnfs_requests_total",
			Help: "Total NFSv3/MOUNT requests by procedure and status",
		}, []string{"procedure", "status"}),
		connectionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shamirnfs_connections_accepted_total",
			Help: "Total TCP connections accepted",
		}),
		connectionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shamirnfs_connections_closed_total",
			Help: "Total TCP connections closed",
		}),
		activeConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "shamirnfs_active_connections",
			Help: "Currently active TCP connections",
		}),
	}
}

func (m *nfsMetrics) RecordRequest(procedure string, duration time.Duration, status string) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(procedure, status).Observe(duration.Seconds())
	m.requestsTotal.WithLabelValues(procedure, status).Inc()
}

func (m *nfsMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.activeConnections.Inc()
}

func (m *nfsMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
	m.activeConnections.Dec()
}

func (m *nfsMetrics) SetActiveConnections(n int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(n))
}
