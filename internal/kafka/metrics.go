package kafka

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics tracks domain event delivery. Failed publishes are not retried,
// so the failure count is the number of events consumers never saw.
type Metrics struct {
	publishDuration metric.Float64Histogram
	published       metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.publishDuration, err = meter.Float64Histogram(
		"event_publish_duration_seconds",
		metric.WithDescription("Time spent handing a domain event to the broker"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create event_publish_duration histogram: %w", err)
	}

	m.published, err = meter.Int64Counter(
		"events_published_total",
		metric.WithDescription("Domain events by type and delivery outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events_published_total counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordPublish(ctx context.Context, event string, durationSeconds float64, success bool) {
	outcome := "delivered"
	if !success {
		outcome = "failed"
	}
	attrs := metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("outcome", outcome),
	)
	m.publishDuration.Record(ctx, durationSeconds, attrs)
	m.published.Add(ctx, 1, attrs)
}
