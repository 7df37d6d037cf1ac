package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FailuresClassified tracks classified payment failures per category
	FailuresClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payguard_failures_classified_total",
			Help: "Total number of payment failures classified",
		},
		[]string{"category"},
	)

	// RetriesExecuted tracks retry executions per category and outcome
	RetriesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payguard_retries_executed_total",
			Help: "Total number of retry executions",
		},
		[]string{"category", "outcome"},
	)

	// RetriesExhausted tracks records that ran out of retry budget
	RetriesExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payguard_retries_exhausted_total",
			Help: "Total number of failures that exhausted their retry budget",
		},
		[]string{"category"},
	)

	// NotificationsSent tracks notification dispatch attempts
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payguard_notifications_sent_total",
			Help: "Total number of notification dispatch attempts",
		},
		[]string{"template", "outcome"},
	)

	// PendingFailures tracks the current retry backlog
	PendingFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payguard_pending_failures",
			Help: "Number of failure records awaiting retry",
		},
	)

	// AwaitingApproval tracks records parked for manual approval
	AwaitingApproval = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payguard_awaiting_approval",
			Help: "Number of failure records awaiting manual approval",
		},
	)

	// ProviderLatency tracks charge API call latency
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payguard_provider_latency_seconds",
			Help:    "Payment provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// ProviderErrors tracks transport-level provider failures
	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payguard_provider_errors_total",
			Help: "Total number of transport-level provider errors",
		},
		[]string{"operation"},
	)

	// DisputesOpened tracks chargebacks received
	DisputesOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payguard_disputes_opened_total",
			Help: "Total number of disputes opened",
		},
	)

	// AlertsFired tracks operator alerts that passed the cooldown
	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payguard_alerts_fired_total",
			Help: "Total number of operator alerts fired",
		},
		[]string{"alert"},
	)
)
