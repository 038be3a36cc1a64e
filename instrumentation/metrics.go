package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the gate
type Metrics struct {
	// HTTP Layer Metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Capability Protocol Metrics
	CapabilitiesIssued metric.Int64Counter
	LinksResolved      metric.Int64Counter
	RedemptionFailures metric.Int64Counter

	// Security Metrics
	ClassifierRejections metric.Int64Counter
	ProbeRejections      metric.Int64Counter
	RateLimitExceeded    metric.Int64Counter
	AuditEventsTotal     metric.Int64Counter
	AuditEventsThrottled metric.Int64Counter
	ThrottleEntries      metric.Int64ObservableGauge

	// Storage Metrics
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
	WindowKeys               metric.Int64ObservableGauge
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	httpMeter := inst.Meter("http")
	serverMeter := inst.Meter("server")
	securityMeter := inst.Meter("security")
	storageMeter := inst.Meter("storage")

	var err error

	// HTTP Layer Metrics
	m.HTTPRequestsTotal, err = httpMeter.Int64Counter(
		"gate.http.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests.total counter: %w", err)
	}

	m.HTTPRequestDuration, err = httpMeter.Float64Histogram(
		"gate.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	// Capability Protocol Metrics
	m.CapabilitiesIssued, err = serverMeter.Int64Counter(
		"gate.capability.issued",
		metric.WithDescription("Number of capabilities issued"),
		metric.WithUnit("{capability}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create capability.issued counter: %w", err)
	}

	m.LinksResolved, err = serverMeter.Int64Counter(
		"gate.link.resolved",
		metric.WithDescription("Number of capabilities redeemed for a destination link"),
		metric.WithUnit("{link}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create link.resolved counter: %w", err)
	}

	m.RedemptionFailures, err = serverMeter.Int64Counter(
		"gate.capability.redemption_failed",
		metric.WithDescription("Number of rejected capability redemptions"),
		metric.WithUnit("{redemption}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create capability.redemption_failed counter: %w", err)
	}

	// Security Metrics
	m.ClassifierRejections, err = securityMeter.Int64Counter(
		"gate.classifier.rejected",
		metric.WithDescription("Number of requests classified as automated"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier.rejected counter: %w", err)
	}

	m.ProbeRejections, err = securityMeter.Int64Counter(
		"gate.probe.rejected",
		metric.WithDescription("Number of issuance requests with a suspicious probe report"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe.rejected counter: %w", err)
	}

	m.RateLimitExceeded, err = securityMeter.Int64Counter(
		"gate.rate_limit.exceeded",
		metric.WithDescription("Number of rate limit violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit.exceeded counter: %w", err)
	}

	m.AuditEventsTotal, err = securityMeter.Int64Counter(
		"gate.audit.events.total",
		metric.WithDescription("Number of security audit events written"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit.events.total counter: %w", err)
	}

	m.AuditEventsThrottled, err = securityMeter.Int64Counter(
		"gate.audit.events.throttled",
		metric.WithDescription("Number of security audit events suppressed by the per-address throttle"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit.events.throttled counter: %w", err)
	}

	m.ThrottleEntries, err = securityMeter.Int64ObservableGauge(
		"gate.audit.throttle.entries",
		metric.WithDescription("Number of addresses tracked by the audit throttle"),
		metric.WithUnit("{address}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit.throttle.entries gauge: %w", err)
	}

	// Storage Metrics
	m.StorageOperationTotal, err = storageMeter.Int64Counter(
		"gate.storage.operations.total",
		metric.WithDescription("Total number of window store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operations.total counter: %w", err)
	}

	m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"gate.storage.operation.duration",
		metric.WithDescription("Window store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	m.WindowKeys, err = storageMeter.Int64ObservableGauge(
		"gate.window.keys",
		metric.WithDescription("Number of client addresses with a tracked rate-limit window"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create window.keys gauge: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, endpoint string, statusCode int, durationMs float64) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.Int("status", statusCode),
	}

	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.HTTPRequestDuration.Record(ctx, durationMs, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordCapabilityIssued records a successful issuance
func (m *Metrics) RecordCapabilityIssued(ctx context.Context, resourceID string) {
	m.CapabilitiesIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource_id", resourceID),
	))
}

// RecordLinkResolved records a successful redemption
func (m *Metrics) RecordLinkResolved(ctx context.Context, resourceID, deviceClass string) {
	m.LinksResolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource_id", resourceID),
		attribute.String("device_class", deviceClass),
	))
}

// RecordRedemptionFailed records a rejected redemption.
// reason is a fixed label such as "expired", "invalid_signature" or "unknown_resource".
func (m *Metrics) RecordRedemptionFailed(ctx context.Context, reason string) {
	m.RedemptionFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordClassifierRejection records a request classified as automated
func (m *Metrics) RecordClassifierRejection(ctx context.Context, rule, endpoint string) {
	m.ClassifierRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rule", rule),
		attribute.String("endpoint", endpoint),
	))
}

// RecordProbeRejection records a suspicious probe report
func (m *Metrics) RecordProbeRejection(ctx context.Context) {
	m.ProbeRejections.Add(ctx, 1)
}

// RecordRateLimitExceeded records a rate limit violation
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiterType string) {
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter_type", limiterType),
	))
}

// RecordAuditEvent records an audit event
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}

// RecordAuditEventThrottled records an audit event dropped by the throttle
func (m *Metrics) RecordAuditEventThrottled(ctx context.Context, eventType string) {
	m.AuditEventsThrottled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}

// RecordStorageOperation records a window store operation
func (m *Metrics) RecordStorageOperation(ctx context.Context, backend, operation, result string, durationMs float64) {
	attrs := []attribute.KeyValue{
		attribute.String("backend", backend),
		attribute.String("operation", operation),
		attribute.String("result", result),
	}

	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.StorageOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("operation", operation),
	))
}
