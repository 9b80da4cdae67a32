package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced     = "order.placed"
	EventPaymentCaptured = "payment.captured"
	EventOrderCancelled  = "order.cancelled"
	EventPaymentRefunded = "payment.refunded"

	EventPaymentCaptureFailed = "payment.capture_failed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes order lifecycle events to a single topic. Messages are
// keyed by order id so every event for one order lands on the same partition.
type Producer struct {
	w   messageWriter
	now func() time.Time
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewProducer(brokers []string, topic string) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  5,
		WriteTimeout: 5 * time.Second,
		ReadTimeout:  5 * time.Second,
		BatchTimeout: 50 * time.Millisecond,
	})
}

func newProducer(w messageWriter) *Producer {
	return &Producer{w: w, now: time.Now}
}

func (p *Producer) Close() error { return p.w.Close() }

// Event is the envelope written as the message value.
type Event struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	OrderID    string          `json:"order_id"`
	Data       json.RawMessage `json:"data"`
}

type orderPlaced struct {
	OrderNumber string          `json:"order_number"`
	OrderType   string          `json:"order_type"`
	Status      string          `json:"status"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Items       int             `json:"items"`
}

type paymentCaptured struct {
	OrderNumber      string          `json:"order_number"`
	PaymentID        string          `json:"payment_id"`
	GatewayPaymentID string          `json:"gateway_payment_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Method           string          `json:"method,omitempty"`
}

type orderCancelled struct {
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

type paymentRefunded struct {
	PaymentID       string          `json:"payment_id"`
	GatewayRefundID string          `json:"gateway_refund_id"`
	Amount          decimal.Decimal `json:"amount"`
	Remaining       decimal.Decimal `json:"remaining"`
	Reason          string          `json:"reason,omitempty"`
}

type paymentCaptureFailed struct {
	OrderNumber      string          `json:"order_number"`
	PaymentID        string          `json:"payment_id"`
	GatewayPaymentID string          `json:"gateway_payment_id"`
	Amount           decimal.Decimal `json:"amount"`
	Reason           string          `json:"reason"`
}

func (p *Producer) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	return p.publish(ctx, EventOrderPlaced, order.ID, orderPlaced{
		OrderNumber: order.OrderNumber,
		OrderType:   string(order.OrderType),
		Status:      string(order.Status),
		TotalPrice:  order.TotalPrice,
		Items:       len(order.Items),
	})
}

func (p *Producer) PublishPaymentCaptured(ctx context.Context, order domain.Order, payment domain.Payment) error {
	return p.publish(ctx, EventPaymentCaptured, order.ID, paymentCaptured{
		OrderNumber:      order.OrderNumber,
		PaymentID:        payment.ID,
		GatewayPaymentID: payment.GatewayPaymentID,
		Amount:           payment.Amount,
		Currency:         string(payment.Currency),
		Method:           string(payment.Method),
	})
}

func (p *Producer) PublishOrderCancelled(ctx context.Context, order domain.Order) error {
	return p.publish(ctx, EventOrderCancelled, order.ID, orderCancelled{
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
	})
}

func (p *Producer) PublishPaymentRefunded(ctx context.Context, payment domain.Payment, refund domain.Refund) error {
	return p.publish(ctx, EventPaymentRefunded, payment.OrderID, paymentRefunded{
		PaymentID:       payment.ID,
		GatewayRefundID: refund.GatewayRefundID,
		Amount:          refund.Amount,
		Remaining:       payment.RefundableAmount(),
		Reason:          refund.Reason,
	})
}

func (p *Producer) PublishPaymentCaptureFailed(ctx context.Context, order domain.Order, payment domain.Payment, reason string) error {
	return p.publish(ctx, EventPaymentCaptureFailed, order.ID, paymentCaptureFailed{
		OrderNumber:      order.OrderNumber,
		PaymentID:        payment.ID,
		GatewayPaymentID: payment.GatewayPaymentID,
		Amount:           payment.Amount,
		Reason:           reason,
	})
}

func (p *Producer) publish(ctx context.Context, eventType, orderID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	now := p.now().UTC()
	value, err := json.Marshal(Event{Type: eventType, OccurredAt: now, OrderID: orderID, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(orderID),
		Value:   value,
		Time:    now,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}
