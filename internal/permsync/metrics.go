package permsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// cycle results.
const (
	resultSuccess   = "success"
	resultPartial   = "partial"
	resultFailed    = "failed"
	resultCancelled = "cancelled"
)

// member skip reasons.
const (
	reasonMissingIdentity = "missing_identity"
	reasonInvalidIdentity = "invalid_identity"
)

// Metrics are the prometheus collectors of the sync job.
type Metrics struct {
	cycles         *prometheus.CounterVec
	groupFailures  *prometheus.CounterVec
	skippedMembers *prometheus.CounterVec
	identities     prometheus.Gauge
	duration       prometheus.Histogram
	lastSuccess    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "permission_sync_cycles_total",
			Help: "Number of permission sync cycles, differentiated by result.",
		}, []string{"result"}),
		groupFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "permission_sync_group_failures_total",
			Help: "Number of failed directory group queries.",
		}, []string{"group"}),
		skippedMembers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "permission_sync_skipped_members_total",
			Help: "Number of group members skipped because of a missing or invalid identity.",
		}, []string{"reason"}),
		identities: factory.NewGauge(prometheus.GaugeOpts{
			Name: "permission_sync_identities",
			Help: "Number of identities published by the last sync cycle.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "permission_sync_duration_seconds",
			Help:    "Duration of permission sync cycles.",
			Buckets: prometheus.DefBuckets,
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "permission_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last cycle in which at least one group succeeded.",
		}),
	}
}
