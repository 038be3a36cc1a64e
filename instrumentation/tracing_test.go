package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpanHelpers_NilSafe(t *testing.T) {
	// Should not panic
	RecordError(nil, errors.New("boom"))
	SetSpanSuccess(nil)
	SetSpanError(nil, "boom")
	SetSpanAttributes(nil)
	AddResourceAttributes(nil, "chat", "ios")
	AddClassifierAttributes(nil, "human", "")
	AddRateLimitAttributes(nil, 1, 19)
	AddStorageAttributes(nil, "record", "memory")
	AddHTTPAttributes(nil, "GET", "/", 200)
	AddSecurityAttributes(nil, "1.2.3.4")
}

func TestSpanHelpers_Status(t *testing.T) {
	tests := []struct {
		name     string
		apply    func(inst *Instrumentation)
		wantCode codes.Code
	}{
		{
			name: "success",
			apply: func(inst *Instrumentation) {
				_, span := inst.Tracer("test").Start(context.Background(), "op")
				SetSpanSuccess(span)
				span.End()
			},
			wantCode: codes.Ok,
		},
		{
			name: "recorded error",
			apply: func(inst *Instrumentation) {
				_, span := inst.Tracer("test").Start(context.Background(), "op")
				RecordError(span, errors.New("store unavailable"))
				span.End()
			},
			wantCode: codes.Error,
		},
		{
			name: "error message",
			apply: func(inst *Instrumentation) {
				_, span := inst.Tracer("test").Start(context.Background(), "op")
				SetSpanError(span, "invalid signature")
				span.End()
			},
			wantCode: codes.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			inst, err := New(Config{Enabled: true, SpanProcessor: recorder})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer func() { _ = inst.Shutdown(context.Background()) }()

			tt.apply(inst)

			ended := recorder.Ended()
			if len(ended) != 1 {
				t.Fatalf("ended spans = %d, want 1", len(ended))
			}
			if got := ended[0].Status().Code; got != tt.wantCode {
				t.Errorf("status code = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestAddClassifierAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	inst, err := New(Config{Enabled: true, SpanProcessor: recorder})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	_, span := inst.Tracer("test").Start(context.Background(), "classify")
	AddClassifierAttributes(span, "suspected_bot", "automation-terms")
	span.End()

	attrs := map[string]string{}
	for _, kv := range recorder.Ended()[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[AttrVerdict] != "suspected_bot" {
		t.Errorf("%s = %q, want %q", AttrVerdict, attrs[AttrVerdict], "suspected_bot")
	}
	if attrs[AttrClassifierRule] != "automation-terms" {
		t.Errorf("%s = %q, want %q", AttrClassifierRule, attrs[AttrClassifierRule], "automation-terms")
	}
}
