package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shamirnfs/shamirnfs/pkg/metrics"
)

// storeMetrics observes Backing Store operations: op/duration/error,
// since SBFS's Backing Store is a capability interface with no
// built-in cache layer of its own.
type storeMetrics struct {
	opDuration *prometheus.HistogramVec
	opErrors   *prometheus.CounterVec
}

func NewStoreMetrics() metrics.StoreMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &storeMetrics{
		opDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shamirnfs_backingstore_operation_duration_seconds",
			Help:    "Backing Store operation latency by operation name",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		opErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shamirnfs_backingstore_operation_errors_total",
			Help: "Backing Store operation failures by operation name",
		}, []string{"op"}),
	}
}

func (m *storeMetrics) RecordOperation(op string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(op).Observe(duration.Seconds())
	if failed {
		m.opErrors.WithLabelValues(op).Inc()
	}
}
