// Package metrics exposes Prometheus instrumentation for the extraction
// service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	documentsTotal     *prometheus.CounterVec
	pagesTotal         *prometheus.CounterVec
	llmTokensTotal     *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	inFlight           prometheus.Gauge
}

// New creates the metric set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billscan",
			Subsystem: "extract",
			Name:      "documents_total",
			Help:      "Total documents processed by outcome.",
		},
		[]string{"status"},
	)
	pagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billscan",
			Subsystem: "extract",
			Name:      "pages_total",
			Help:      "Total pages processed by outcome.",
		},
		[]string{"status"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billscan",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage by direction.",
		},
		[]string{"provider", "direction"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "billscan",
			Subsystem: "extract",
			Name:      "duration_seconds",
			Help:      "End-to-end document extraction duration in seconds.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		},
		[]string{"status"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "billscan",
			Subsystem: "extract",
			Name:      "in_flight_documents",
			Help:      "Number of documents currently being processed.",
		},
	)

	registry.MustRegister(
		documentsTotal,
		pagesTotal,
		llmTokensTotal,
		extractionDuration,
		inFlight,
	)

	return &Metrics{
		registry:           registry,
		documentsTotal:     documentsTotal,
		pagesTotal:         pagesTotal,
		llmTokensTotal:     llmTokensTotal,
		extractionDuration: extractionDuration,
		inFlight:           inFlight,
	}
}

// Handler returns the scrape handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordDocument records a completed document extraction.
func (m *Metrics) RecordDocument(status string, okPages, failedPages int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.documentsTotal.WithLabelValues(status).Inc()
	m.extractionDuration.WithLabelValues(status).Observe(duration.Seconds())
	if okPages > 0 {
		m.pagesTotal.WithLabelValues("ok").Add(float64(okPages))
	}
	if failedPages > 0 {
		m.pagesTotal.WithLabelValues("failed").Add(float64(failedPages))
	}
}

// RecordTokenUsage records LLM token consumption.
func (m *Metrics) RecordTokenUsage(provider string, inputTokens, outputTokens int) {
	if provider == "" {
		provider = "unknown"
	}
	if inputTokens > 0 {
		m.llmTokensTotal.WithLabelValues(provider, "in").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokensTotal.WithLabelValues(provider, "out").Add(float64(outputTokens))
	}
}

// InFlightInc marks a document as in progress.
func (m *Metrics) InFlightInc() { m.inFlight.Inc() }

// InFlightDec marks a document as finished.
func (m *Metrics) InFlightDec() { m.inFlight.Dec() }
