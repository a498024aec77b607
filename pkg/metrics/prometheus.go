package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	FetchJobs      *prometheus.CounterVec
	DealsExtracted *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	SkippedMarkup  *prometheus.CounterVec

	otel *otelCounters
}

// NewMetrics registers the metrics on reg under namespace.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FetchJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_jobs_total",
			Help:      "Fetch job transitions by source and resulting status",
		}, []string{"source", "status"}),
		DealsExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deals_extracted_total",
			Help:      "Deals written by completed fetch jobs",
		}, []string{"source"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time taken by one fetch attempt, network and extraction",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"source"}),
		SkippedMarkup: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_skipped_total",
			Help:      "Markup fragments skipped during extraction",
		}, []string{"source", "fragment"}),
	}
}

func (m *Metrics) JobTransition(source, status string) {
	if m == nil {
		return
	}
	m.FetchJobs.WithLabelValues(source, status).Inc()
	m.otel.jobTransition(source, status)
}

func (m *Metrics) Deals(source string, n int) {
	if m == nil {
		return
	}
	m.DealsExtracted.WithLabelValues(source).Add(float64(n))
	m.otel.addDeals(source, n)
}

func (m *Metrics) FetchTook(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) ExtractSkipped(source, fragment string) {
	if m == nil {
		return
	}
	m.SkippedMarkup.WithLabelValues(source, fragment).Inc()
}
