// Package metrics provides Prometheus metrics for seedlink.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all seedlink metrics
	namespace = "seedlink"
)

// Registry holds every seedlink collector plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

var (
	// FeedChecksTotal tracks per-feed evaluation outcomes
	FeedChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_checks_total",
			Help:      "Total number of feed evaluations by result",
		},
		[]string{"result"},
	)

	// FeedFetchDuration tracks how long fetching and parsing one feed takes
	FeedFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of feed fetch and parse in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// FeedUnreadItems tracks the unread count of each feed after the last pass
	FeedUnreadItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_unread_items",
			Help:      "Unread items per feed as of the last check",
		},
		[]string{"feed"},
	)

	// JobsTotal tracks processed background jobs
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of background jobs processed",
		},
		[]string{"type", "result"},
	)

	// NotificationsTotal tracks notifications handed to the notifier
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notifications emitted",
		},
		[]string{"kind"},
	)

	// RecordsManaged tracks configured server records per provider
	RecordsManaged = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_managed",
			Help:      "Number of configured server records per provider",
		},
		[]string{"provider"},
	)

	// SettingsTransfers tracks exports and imports of the settings store
	SettingsTransfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_transfers_total",
			Help:      "Total number of settings exports and imports",
		},
		[]string{"direction", "format", "result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		FeedChecksTotal,
		FeedFetchDuration,
		FeedUnreadItems,
		JobsTotal,
		NotificationsTotal,
		RecordsManaged,
		SettingsTransfers,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordFeedCheck records one feed evaluation
func RecordFeedCheck(feed, result string, unread int, seconds float64) {
	FeedChecksTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		FeedFetchDuration.Observe(seconds)
		FeedUnreadItems.WithLabelValues(feed).Set(float64(unread))
	}
}

// RecordJob records a processed job
func RecordJob(jobType string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	JobsTotal.WithLabelValues(jobType, result).Inc()
}

// RecordNotification records an emitted notification
func RecordNotification(kind string) {
	NotificationsTotal.WithLabelValues(kind).Inc()
}

// SetRecordsManaged replaces the per-provider record gauge
func SetRecordsManaged(counts map[string]int) {
	RecordsManaged.Reset()
	for provider, n := range counts {
		RecordsManaged.WithLabelValues(provider).Set(float64(n))
	}
}

// RecordSettingsTransfer records an export or import
func RecordSettingsTransfer(direction, format string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	SettingsTransfers.WithLabelValues(direction, format, result).Inc()
}
