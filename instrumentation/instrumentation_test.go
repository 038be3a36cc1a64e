package instrumentation

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{
			name:   "disabled",
			config: Config{Enabled: false},
		},
		{
			name: "enabled with service name and version",
			config: Config{
				Enabled:        true,
				ServiceName:    "test-service",
				ServiceVersion: "1.0.0",
			},
		},
		{
			name:   "enabled with defaults",
			config: Config{Enabled: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := New(tt.config)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer func() { _ = inst.Shutdown(context.Background()) }()

			if inst.Meter("http") == nil {
				t.Error("Meter('http') returned nil")
			}
			if inst.Tracer("server") == nil {
				t.Error("Tracer('server') returned nil")
			}
			if inst.Metrics() == nil {
				t.Error("Metrics() returned nil")
			}
			if inst.TracerProvider() == nil {
				t.Error("TracerProvider() returned nil")
			}
			if inst.MeterProvider() == nil {
				t.Error("MeterProvider() returned nil")
			}
		})
	}
}

func TestInstrumentation_ShutdownIdempotent(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("first Shutdown() error = %v", err)
	}
	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestInstrumentation_ShouldLogClientIPs(t *testing.T) {
	for _, want := range []bool{true, false} {
		inst, err := New(Config{LogClientIPs: want})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if got := inst.ShouldLogClientIPs(); got != want {
			t.Errorf("ShouldLogClientIPs() = %v, want %v", got, want)
		}
	}
}

func TestInstrumentation_RegisterWindowKeysCallback(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	inst, err := New(Config{Enabled: true, MetricReader: reader})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	if err := inst.RegisterWindowKeysCallback(func() int64 { return 42 }); err != nil {
		t.Fatalf("RegisterWindowKeysCallback() error = %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	gauge, ok := findMetric(rm, "gate.window.keys").(metricdata.Gauge[int64])
	if !ok {
		t.Fatal("gate.window.keys gauge not collected")
	}
	if len(gauge.DataPoints) != 1 || gauge.DataPoints[0].Value != 42 {
		t.Errorf("gate.window.keys data points = %+v, want single value 42", gauge.DataPoints)
	}
}

func TestInstrumentation_RegisterCallbackNil(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := inst.RegisterWindowKeysCallback(nil); err == nil {
		t.Error("RegisterWindowKeysCallback(nil) should return error")
	}
	if err := inst.RegisterThrottleCallback(nil); err == nil {
		t.Error("RegisterThrottleCallback(nil) should return error")
	}
}

func TestInstrumentation_SpanProcessor(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	inst, err := New(Config{Enabled: true, SpanProcessor: recorder})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	_, span := inst.Tracer("server").Start(context.Background(), "gate.issue")
	AddResourceAttributes(span, "chat", "android")
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	if ended[0].Name() != "gate.issue" {
		t.Errorf("span name = %q, want %q", ended[0].Name(), "gate.issue")
	}

	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[AttrResourceID] != "chat" || attrs[AttrDeviceClass] != "android" {
		t.Errorf("span attributes = %v", attrs)
	}
}

// findMetric returns the aggregation of the named metric, or nil.
func findMetric(rm metricdata.ResourceMetrics, name string) metricdata.Aggregation {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	return nil
}
