package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	ordersCreatedTotal    metric.Int64Counter
	orderCreationDuration metric.Float64Histogram
	commandDuration       metric.Float64Histogram
	paymentVerifications  metric.Int64Counter
	refundsTotal          metric.Int64Counter
	stockRejections       metric.Int64Counter
	guestsPurged          metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.ordersCreatedTotal, err = meter.Int64Counter(
		"orders_created_total",
		metric.WithDescription("Total number of orders created"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_created_total counter: %w", err)
	}

	m.orderCreationDuration, err = meter.Float64Histogram(
		"order_creation_duration_seconds",
		metric.WithDescription("Duration of order creation operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_creation_duration histogram: %w", err)
	}

	m.commandDuration, err = meter.Float64Histogram(
		"checkout_command_duration_seconds",
		metric.WithDescription("Duration of checkout commands and queries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkout_command_duration histogram: %w", err)
	}

	m.paymentVerifications, err = meter.Int64Counter(
		"payment_verifications_total",
		metric.WithDescription("Payment verification attempts by outcome"),
		metric.WithUnit("{verification}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payment_verifications_total counter: %w", err)
	}

	m.refundsTotal, err = meter.Int64Counter(
		"refunds_total",
		metric.WithDescription("Refunds issued by kind"),
		metric.WithUnit("{refund}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create refunds_total counter: %w", err)
	}

	m.stockRejections, err = meter.Int64Counter(
		"stock_rejections_total",
		metric.WithDescription("Checkout attempts rejected for insufficient stock"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stock_rejections_total counter: %w", err)
	}

	m.guestsPurged, err = meter.Int64Counter(
		"guests_purged_total",
		metric.WithDescription("Unconverted guests removed after the retention window"),
		metric.WithUnit("{guest}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create guests_purged_total counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, orderType string, success bool) {
	m.ordersCreatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("order_type", orderType),
		attribute.String("status", statusLabel(success)),
	))
}

func (m *Metrics) RecordOrderCreationDuration(ctx context.Context, durationSeconds float64) {
	m.orderCreationDuration.Record(ctx, durationSeconds)
}

func (m *Metrics) RecordCommand(ctx context.Context, name string, durationSeconds float64, success bool) {
	m.commandDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("command", name),
		attribute.String("status", statusLabel(success)),
	))
}

// RecordPaymentVerification counts one verification; outcome is one of
// paid, already_verified, invalid_signature or error.
func (m *Metrics) RecordPaymentVerification(ctx context.Context, outcome string) {
	m.paymentVerifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordRefund(ctx context.Context, full bool) {
	kind := "partial"
	if full {
		kind = "full"
	}
	m.refundsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordStockRejection(ctx context.Context) {
	m.stockRejections.Add(ctx, 1)
}

func (m *Metrics) RecordGuestsPurged(ctx context.Context, count int) {
	m.guestsPurged.Add(ctx, int64(count))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
