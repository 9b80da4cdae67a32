package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableTxManager traces and times every unit of work run through the
// wrapped store.
type ObservableTxManager struct {
	tx      ports.TxManager
	metrics *database.Metrics
}

func NewObservableTxManager(tx ports.TxManager, metrics *database.Metrics) *ObservableTxManager {
	return &ObservableTxManager{
		tx:      tx,
		metrics: metrics,
	}
}

func (m *ObservableTxManager) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return m.observe(ctx, "Store.InTx", "write", fn, m.tx.InTx)
}

func (m *ObservableTxManager) View(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return m.observe(ctx, "Store.View", "read", fn, m.tx.View)
}

func (m *ObservableTxManager) observe(
	ctx context.Context,
	spanName, mode string,
	fn func(ctx context.Context, tx ports.Tx) error,
	run func(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error,
) error {
	ctx, span := telemetry.StartSpan(ctx, spanName)
	defer span.End()

	telemetry.AddSpanAttributes(span, attribute.String("db.tx.mode", mode))

	start := time.Now()
	err := run(ctx, fn)
	duration := time.Since(start).Seconds()

	m.metrics.RecordTransaction(ctx, mode, duration, err == nil)

	telemetry.FinishSpan(span, err, domain.IsRejection)
	return err
}
