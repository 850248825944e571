package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shamirnfs/shamirnfs/pkg/metrics"
)

type sscMetrics struct {
	splitDuration   prometheus.Histogram
	combineDuration prometheus.Histogram
	combineErrors   prometheus.Counter
	sharesUsed      prometheus.Histogram
	splitBytes      prometheus.Histogram
}

func NewSSCMetrics() metrics.SSCMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &sscMetrics{
		splitDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "shamirnfs_ssc_split_duration_seconds",
			Help:    "Shamir split latency",
			Buckets: prometheus.DefBuckets,
		}),
		combineDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "shamirnfs_ssc_combine_duration_seconds",
			Help:    "Shamir combine (reconstruction) latency",
			Buckets: prometheus.DefBuckets,
		}),
		combineErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shamirnfs_ssc_combine_errors_total",
			Help: "Combine calls that failed, typically due to insufficient shares",
		}),
		sharesUsed: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "shamirnfs_ssc_combine_shares_used",
			Help:    "Number of shares gathered for a Combine call",
			Buckets: prometheus.LinearBuckets(1, 1, 16),
		}),
		splitBytes: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "shamirnfs_ssc_split_plaintext_bytes",
			Help:    "Plaintext size of Split calls",
			Buckets: prometheus.ExponentialBuckets(64, 4, 12),
		}),
	}
}

func (m *sscMetrics) RecordSplit(duration time.Duration, plaintextBytes int) {
	if m == nil {
		return
	}
	m.splitDuration.Observe(duration.Seconds())
	m.splitBytes.Observe(float64(plaintextBytes))
}

func (m *sscMetrics) RecordCombine(duration time.Duration, sharesUsed int, failed bool) {
	if m == nil {
		return
	}
	m.combineDuration.Observe(duration.Seconds())
	m.sharesUsed.Observe(float64(sharesUsed))
	if failed {
		m.combineErrors.Inc()
	}
}
