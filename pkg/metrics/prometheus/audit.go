package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shamirnfs/shamirnfs/pkg/metrics"
)

type auditMetrics struct {
	appendDuration prometheus.Histogram
	rolloversTotal *prometheus.CounterVec
	proofDuration  prometheus.Histogram
}

func NewAuditMetrics() metrics.AuditMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &auditMetrics{
		appendDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "shamirnfs_audit_append_duration_seconds",
			Help:    "Audit log append latency",
			Buckets: prometheus.DefBuckets,
		}),
		rolloversTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shamirnfs_audit_window_rollovers_total",
			Help: "Audit window rollovers by trigger (duration, event_count)",
		}, []string{"trigger"}),
		proofDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "shamirnfs_audit_proof_duration_seconds",
			Help:    "Inclusion proof generation latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *auditMetrics) RecordAppend(duration time.Duration) {
	if m == nil {
		return
	}
	m.appendDuration.Observe(duration.Seconds())
}

func (m *auditMetrics) RecordRollover(trigger string) {
	if m == nil {
		return
	}
	m.rolloversTotal.WithLabelValues(trigger).Inc()
}

func (m *auditMetrics) RecordProofGenerated(duration time.Duration) {
	if m == nil {
		return
	}
	m.proofDuration.Observe(duration.Seconds())
}
