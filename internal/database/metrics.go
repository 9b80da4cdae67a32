package database

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	txDuration metric.Float64Histogram
	rollbacks  metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.txDuration, err = meter.Float64Histogram(
		"db_transaction_duration_seconds",
		metric.WithDescription("Duration of database units of work"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_transaction_duration histogram: %w", err)
	}

	m.rollbacks, err = meter.Int64Counter(
		"db_transaction_rollbacks_total",
		metric.WithDescription("Units of work that were rolled back"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_transaction_rollbacks counter: %w", err)
	}

	return m, nil
}

// RecordTransaction records one unit of work. mode is "write" or "read".
func (m *Metrics) RecordTransaction(ctx context.Context, mode string, durationSeconds float64, committed bool) {
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.txDuration.Record(ctx, durationSeconds, attrs)
	if !committed {
		m.rollbacks.Add(ctx, 1, attrs)
	}
}
