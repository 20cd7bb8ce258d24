package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "cadence"
	metricsSubsystem = "recurring"
)

// Metrics are the Prometheus series exported by the occurrence scheduler
// and dispatcher.
type Metrics struct {
	Ticks             prometheus.Counter
	TickDuration      prometheus.Histogram
	OccurrencesFired  *prometheus.CounterVec
	CampaignErrors    prometheus.Counter
	LockContended     prometheus.Counter
	CampaignsComplete prometheus.Counter
	EmailsSent        *prometheus.CounterVec
}

// NewMetrics registers the worker metrics with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "ticks_total",
			Help:      "Scheduler ticks run",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one scheduler tick",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		OccurrencesFired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "occurrences_total",
			Help:      "Occurrences recorded, by status",
		}, []string{"status"}),
		CampaignErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "campaign_errors_total",
			Help:      "Due campaigns that failed to fire",
		}),
		LockContended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "lock_contended_total",
			Help:      "Due campaigns skipped because another worker held the lock",
		}),
		CampaignsComplete: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "campaigns_completed_total",
			Help:      "Campaigns moved to completed by the scheduler",
		}),
		EmailsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "emails_total",
			Help:      "Emails handed to the transport, by result",
		}, []string{"result"}),
	}
}
