package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/kafka"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *kafka.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *kafka.Metrics) *ObservableEventBus {
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
	}
}

func (e *ObservableEventBus) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	return e.observe(ctx, kafka.EventOrderPlaced, []attribute.KeyValue{
		attribute.String("order.id", order.ID),
		attribute.String("order.number", order.OrderNumber),
		attribute.String("order.type", string(order.OrderType)),
	}, func(ctx context.Context) error {
		return e.bus.PublishOrderPlaced(ctx, order)
	})
}

func (e *ObservableEventBus) PublishPaymentCaptured(ctx context.Context, order domain.Order, payment domain.Payment) error {
	return e.observe(ctx, kafka.EventPaymentCaptured, []attribute.KeyValue{
		attribute.String("order.id", order.ID),
		attribute.String("payment.id", payment.ID),
		attribute.String("payment.method", string(payment.Method)),
	}, func(ctx context.Context) error {
		return e.bus.PublishPaymentCaptured(ctx, order, payment)
	})
}

func (e *ObservableEventBus) PublishOrderCancelled(ctx context.Context, order domain.Order) error {
	return e.observe(ctx, kafka.EventOrderCancelled, []attribute.KeyValue{
		attribute.String("order.id", order.ID),
		attribute.String("order.payment_status", string(order.PaymentStatus)),
	}, func(ctx context.Context) error {
		return e.bus.PublishOrderCancelled(ctx, order)
	})
}

func (e *ObservableEventBus) PublishPaymentRefunded(ctx context.Context, payment domain.Payment, refund domain.Refund) error {
	return e.observe(ctx, kafka.EventPaymentRefunded, []attribute.KeyValue{
		attribute.String("payment.id", payment.ID),
		attribute.String("refund.id", refund.GatewayRefundID),
		attribute.String("refund.amount", refund.Amount.StringFixed(2)),
	}, func(ctx context.Context) error {
		return e.bus.PublishPaymentRefunded(ctx, payment, refund)
	})
}

func (e *ObservableEventBus) PublishPaymentCaptureFailed(ctx context.Context, order domain.Order, payment domain.Payment, reason string) error {
	return e.observe(ctx, kafka.EventPaymentCaptureFailed, []attribute.KeyValue{
		attribute.String("order.id", order.ID),
		attribute.String("payment.id", payment.ID),
		attribute.String("failure.reason", reason),
	}, func(ctx context.Context) error {
		return e.bus.PublishPaymentCaptureFailed(ctx, order, payment, reason)
	})
}

func (e *ObservableEventBus) observe(ctx context.Context, event string, attrs []attribute.KeyValue, publish func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.Publish")
	defer span.End()

	telemetry.AddSpanAttributes(span, append(attrs, attribute.String("event.type", event))...)

	start := time.Now()
	err := publish(ctx)
	duration := time.Since(start).Seconds()

	e.metrics.RecordPublish(ctx, event, duration, err == nil)

	telemetry.FinishSpan(span, err, nil)
	return err
}
