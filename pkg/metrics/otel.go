package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// otelCounters mirrors the job counters onto an OpenTelemetry meter for OTLP export.
type otelCounters struct {
	jobs  metric.Int64Counter
	deals metric.Int64Counter
}

// Mirror also records job transitions and extracted deals on meter.
func (m *Metrics) Mirror(meter metric.Meter) error {
	jobs, err := meter.Int64Counter("fetch.jobs",
		metric.WithDescription("Fetch job transitions by source and resulting status"))
	if err != nil {
		return fmt.Errorf("metrics: failed to create fetch.jobs counter: %w", err)
	}
	deals, err := meter.Int64Counter("fetch.deals",
		metric.WithDescription("Deals written by completed fetch jobs"))
	if err != nil {
		return fmt.Errorf("metrics: failed to create fetch.deals counter: %w", err)
	}

	m.otel = &otelCounters{jobs: jobs, deals: deals}
	return nil
}

func (c *otelCounters) jobTransition(source, status string) {
	if c == nil {
		return
	}
	c.jobs.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	))
}

func (c *otelCounters) addDeals(source string, n int) {
	if c == nil {
		return
	}
	c.deals.Add(context.Background(), int64(n), metric.WithAttributes(attribute.String("source", source)))
}
