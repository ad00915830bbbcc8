// Package metrics provides Prometheus metrics for the sym scraper.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for a scrape run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Listing outcomes
	listings        *prometheus.CounterVec
	listingDuration prometheus.Histogram

	// Pagination
	pagesTraversed   prometheus.Counter
	entriesExtracted prometheus.Counter
	entriesDropped   prometheus.Counter
	traversalStops   *prometheus.CounterVec

	// Aggregation
	ledgerContributors     prometheus.Gauge
	ledgerContributions    prometheus.Gauge
	duplicateContributions prometheus.Counter
	matches                prometheus.Gauge

	// Status server
	httpRequests *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sym",
		subsystem:        "scraper",
		histogramBuckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.listings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "listings_total",
		Help:      "Listings processed, by outcome (ok, or the skip reason)",
	}, []string{"outcome"})

	m.listingDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "listing_duration_seconds",
		Help:      "Wall time spent scraping one listing",
		Buckets:   m.histogramBuckets,
	})

	m.pagesTraversed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pages_total",
		Help:      "Catalog pages extracted",
	})

	m.entriesExtracted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "entries_total",
		Help:      "Catalog entries kept after rating labels were parsed",
	})

	m.entriesDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "entries_dropped_total",
		Help:      "Catalog entries dropped because their rating label did not parse",
	})

	m.traversalStops = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "traversal_stops_total",
		Help:      "Pagination traversals finished, by stop reason",
	}, []string{"reason"})

	m.ledgerContributors = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_contributors",
		Help:      "Distinct contributors in the last built ledger",
	})

	m.ledgerContributions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_contributions",
		Help:      "Contribution records in the last built ledger",
	})

	m.duplicateContributions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duplicate_contributions_total",
		Help:      "Contributions that replaced an earlier record for the same release title",
	})

	m.matches = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches",
		Help:      "Contributors in the last match set",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Status server requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
}

// RecordListing counts one listing with the given outcome.
func RecordListing(outcome string) {
	globalManager.listings.WithLabelValues(outcome).Inc()
}

// RecordListingDuration observes the time spent on one listing.
func RecordListingDuration(seconds float64) {
	globalManager.listingDuration.Observe(seconds)
}

// RecordPageTraversed counts one extracted page.
func RecordPageTraversed() {
	globalManager.pagesTraversed.Inc()
}

// RecordEntriesExtracted adds n kept entries.
func RecordEntriesExtracted(n int) {
	if n > 0 {
		globalManager.entriesExtracted.Add(float64(n))
	}
}

// RecordEntryDropped counts one entry dropped by the score parse policy.
func RecordEntryDropped() {
	globalManager.entriesDropped.Inc()
}

// RecordTraversalStop counts a finished traversal by reason.
func RecordTraversalStop(reason string) {
	globalManager.traversalStops.WithLabelValues(reason).Inc()
}

// UpdateLedgerSize sets the ledger gauges.
func UpdateLedgerSize(contributors, contributions int) {
	globalManager.ledgerContributors.Set(float64(contributors))
	globalManager.ledgerContributions.Set(float64(contributions))
}

// RecordDuplicateContributions adds n replaced contributions.
func RecordDuplicateContributions(n int) {
	if n > 0 {
		globalManager.duplicateContributions.Add(float64(n))
	}
}

// UpdateMatches sets the match count gauge.
func UpdateMatches(n int) {
	globalManager.matches.Set(float64(n))
}

// RecordHTTPRequest counts one status server request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// GetRegistry returns the custom registry holding every metric.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the custom registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry to path, for the node exporter textfile
// collector. Batch runs end before a scraper could pull them.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
