package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "defectdoc"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Report generation metrics
var (
	ReportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		},
		[]string{"status"}, // "success" or "error"
	)

	ReportGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_generation_duration_seconds",
			Help:      "Report generation time distribution",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	ReportPages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_pages",
			Help:      "Distribution of pages per generated report",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		},
	)

	ReportDefects = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_defects",
			Help:      "Distribution of defect records per generated report",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)
)

// Image processing metrics
var (
	ImagesPlaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_placed_total",
			Help:      "Total number of defect photos embedded in reports",
		},
	)

	ImageFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_failures_total",
			Help:      "Total number of defect photos replaced with a placeholder",
		},
	)
)

// Archive storage metrics
var (
	ReportsArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_archived_total",
			Help:      "Total number of reports written to archive storage",
		},
		[]string{"status"}, // "success" or "error"
	)
)
