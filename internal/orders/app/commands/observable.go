package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/telemetry"
)

// Handler is implemented by every command and query handler.
type Handler[C any, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// ObservableHandler wraps a handler with a span, duration metrics and logs.
type ObservableHandler[C any, R any] struct {
	name     string
	handler  Handler[C, R]
	logger   *slog.Logger
	metrics  *metrics.Metrics
	recorder func(ctx context.Context, result R, err error, duration time.Duration)
}

func NewObservableHandler[C any, R any](name string, handler Handler[C, R], logger *slog.Logger, metrics *metrics.Metrics) *ObservableHandler[C, R] {
	return &ObservableHandler[C, R]{
		name:    name,
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

// WithRecorder registers a hook that records outcome-specific metrics.
func (o *ObservableHandler[C, R]) WithRecorder(fn func(ctx context.Context, result R, err error, duration time.Duration)) *ObservableHandler[C, R] {
	o.recorder = fn
	return o
}

func (o *ObservableHandler[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	ctx, span := telemetry.StartSpan(ctx, o.name+".Handle")
	defer span.End()

	start := time.Now()
	o.logger.DebugContext(ctx, "handling "+o.name)

	result, err := o.handler.Handle(ctx, cmd)

	duration := time.Since(start)
	o.metrics.RecordCommand(ctx, o.name, duration.Seconds(), err == nil)
	if o.recorder != nil {
		o.recorder(ctx, result, err, duration)
	}

	telemetry.FinishSpan(span, err, domain.IsRejection)
	if err != nil {
		if domain.IsRejection(err) {
			o.logger.WarnContext(ctx, o.name+" rejected", "error", err)
		} else {
			o.logger.ErrorContext(ctx, o.name+" failed", "error", err)
		}
		return result, err
	}

	o.logger.InfoContext(ctx, o.name+" completed", "duration_ms", duration.Milliseconds())

	return result, nil
}
