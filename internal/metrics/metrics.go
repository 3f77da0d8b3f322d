// Package metrics registers the Prometheus instruments for the dashboard
// backend. All instruments are registered via promauto at init time and
// exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soclens_poll_cycles_total",
			Help: "Total number of completed poll cycles per pipeline",
		},
		[]string{"pipeline"},
	)

	PollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soclens_poll_errors_total",
			Help: "Total number of failed poll cycles per pipeline",
		},
		[]string{"pipeline"},
	)

	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soclens_poll_duration_seconds",
			Help:    "Duration of a poll cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline"},
	)

	RecordsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soclens_records_accepted_total",
			Help: "Total number of records accepted past the watermark",
		},
		[]string{"pipeline"},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soclens_records_skipped_total",
			Help: "Total number of raw records dropped during normalization",
		},
		[]string{"pipeline"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soclens_cache_size",
			Help: "Current number of entries in the live cache",
		},
		[]string{"stream"},
	)

	// Fan-out metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "soclens_active_sessions",
			Help: "Number of live-view sessions currently connected",
		},
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soclens_broadcasts_total",
			Help: "Total number of delta broadcasts per stream",
		},
		[]string{"stream"},
	)

	SessionSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soclens_session_send_failures_total",
			Help: "Total number of sessions dropped due to send failure",
		},
	)

	// Store metrics
	StoreInserts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soclens_store_inserts_total",
			Help: "Total number of events mirrored into the document store",
		},
	)

	StoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soclens_store_errors_total",
			Help: "Total number of store operation failures",
		},
	)

	// Syslog intake metrics
	SyslogMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soclens_syslog_messages_total",
			Help: "Total number of syslog datagrams received",
		},
	)

	SyslogParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soclens_syslog_parse_errors_total",
			Help: "Total number of syslog datagrams that could not be parsed",
		},
	)

	WebhookEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soclens_webhook_events_total",
			Help: "Total number of events accepted on the webhook endpoint",
		},
	)
)
