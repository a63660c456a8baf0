package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Entitlement and rewrite metrics
	Decisions       *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
	UsageRecordErrs prometheus.Counter
	Referrals       *prometheus.CounterVec

	// Contact mail outbox
	MailDelivered prometheus.Counter
	MailFailed    prometheus.Counter
	MailLatency   prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entitlement_decisions_total",
			Help:      "Entitlement decisions by tool and outcome",
		}, []string{"tool", "outcome"}),
		GatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rewrite_duration_seconds",
			Help:      "Duration of calls to the generative text service",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		}, []string{"outcome"}),
		UsageRecordErrs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "usage_record_failures_total",
			Help:      "Usage records that could not be persisted",
		}),
		Referrals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "referrals_total",
			Help:      "Referral ledger transitions",
		}, []string{"status"}),

		MailDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "contact_mail_delivered_total",
			Help:      "Contact messages delivered",
		}),
		MailFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "contact_mail_failed_total",
			Help:      "Contact message delivery attempts that failed",
		}),
		MailLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "contact_mail_batch_duration_seconds",
			Help:      "Time spent delivering one batch of contact messages",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// NewTestMetrics registers on a private registry so tests can build many instances.
func NewTestMetrics() *Metrics {
	return NewMetrics("test", "", prometheus.NewRegistry())
}
