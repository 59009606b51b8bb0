package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	CategoriesTotal    *prometheus.CounterVec
	CategoryDuration   prometheus.Histogram
	RevealRoundsTotal  *prometheus.CounterVec
	ItemsScrapedTotal  *prometheus.CounterVec
	ItemsSkippedTotal  *prometheus.CounterVec
	AbsentFieldsTotal  *prometheus.CounterVec
	ParseFailuresTotal *prometheus.CounterVec
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total page loads issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "Page load latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	categories := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_categories_total",
			Help: "Categories crawled, by status.",
		},
		[]string{"status"},
	)
	categoryDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_category_duration_seconds",
			Help:    "Wall time spent crawling one category.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)
	revealRounds := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_reveal_rounds_total",
			Help: "Reveal-more rounds performed per category.",
		},
		[]string{"category"},
	)
	itemsScraped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of records sent to the pipeline.",
		},
		[]string{"category"},
	)
	itemsSkipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_skipped_total",
			Help: "Entries dropped because they had no title.",
		},
		[]string{"category"},
	)
	absentFields := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_absent_fields_total",
			Help: "Optional fields missing from an entry.",
		},
		[]string{"field"},
	)
	parseFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_parse_failures_total",
			Help: "Raw values that could not be normalized.",
		},
		[]string{"field"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(
		requests, requestDuration,
		categories, categoryDuration, revealRounds,
		itemsScraped, itemsSkipped, absentFields, parseFailures,
		retries, errorsTotal,
	)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		CategoriesTotal:    categories,
		CategoryDuration:   categoryDuration,
		RevealRoundsTotal:  revealRounds,
		ItemsScrapedTotal:  itemsScraped,
		ItemsSkippedTotal:  itemsSkipped,
		AbsentFieldsTotal:  absentFields,
		ParseFailuresTotal: parseFailures,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a page load duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// ObserveCategory records the outcome and wall time of one category.
func (m *Metrics) ObserveCategory(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.CategoriesTotal.WithLabelValues(status).Inc()
	m.CategoryDuration.Observe(d.Seconds())
}

// AddRevealRounds adds reveal rounds performed for a category.
func (m *Metrics) AddRevealRounds(category string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RevealRoundsTotal.WithLabelValues(category).Add(float64(n))
}

// AddItems adds records emitted for a category.
func (m *Metrics) AddItems(category string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsScrapedTotal.WithLabelValues(category).Add(float64(n))
}

// IncSkipped increments the skipped entries counter.
func (m *Metrics) IncSkipped(category string) {
	if m == nil {
		return
	}
	m.ItemsSkippedTotal.WithLabelValues(category).Inc()
}

// IncAbsent increments the absent field counter.
func (m *Metrics) IncAbsent(field string) {
	if m == nil {
		return
	}
	m.AbsentFieldsTotal.WithLabelValues(field).Inc()
}

// IncParseFailure increments the parse failure counter.
func (m *Metrics) IncParseFailure(field string) {
	if m == nil {
		return
	}
	m.ParseFailuresTotal.WithLabelValues(field).Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
