package telemetry

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "valid", cfg: Config{ServiceName: "storefront", SampleRate: 0.5}},
		{name: "missing service name", cfg: Config{SampleRate: 1}, want: ErrMissingServiceName},
		{name: "negative sample rate", cfg: Config{ServiceName: "storefront", SampleRate: -0.1}, want: ErrInvalidSampleRate},
		{name: "sample rate above one", cfg: Config{ServiceName: "storefront", SampleRate: 1.5}, want: ErrInvalidSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) || !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected %v wrapped in ErrInvalidConfig, got %v", tt.want, err)
			}
		})
	}
}

func TestSetupRequiresEndpointForDefaultExporters(t *testing.T) {
	_, err := Setup(context.Background(), Config{ServiceName: "storefront", EnableTracing: true, SampleRate: 1})
	if !errors.Is(err, ErrMissingEndpoint) {
		t.Errorf("expected ErrMissingEndpoint, got %v", err)
	}
}

func TestSetupWithInjectedExporters(t *testing.T) {
	ctx := context.Background()
	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()

	tel, err := Setup(ctx, Config{
		ServiceName:    "storefront",
		ServiceVersion: "test",
		Environment:    "test",
		EnableTracing:  true,
		EnableMetrics:  true,
		SampleRate:     1,
	}, WithTraceExporter(spans), WithMetricReader(reader))
	if err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}

	_, span := StartSpan(ctx, "checkout")
	span.End()

	counter, err := tel.Meter().Int64Counter("orders_test_total")
	if err != nil {
		t.Fatalf("create counter: %v", err)
	}
	counter.Add(ctx, 2)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Error("expected the counter to be collected")
	}

	if err := tel.tracerProvider.ForceFlush(ctx); err != nil {
		t.Fatalf("ForceFlush() failed: %v", err)
	}
	if got := spans.GetSpans(); len(got) != 1 || got[0].Name != "checkout" {
		t.Errorf("expected one exported checkout span, got %v", got)
	}

	if err := tel.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, sdktrace.NeverSample().Description()},
		{1, sdktrace.AlwaysSample().Description()},
		{0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}
