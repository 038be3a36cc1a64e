package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys
//
// SECURITY WARNING: Never put capability signatures or MAC keys in traces or
// metrics. Record only metadata such as the resource identifier, the verdict
// and the failure reason.
const (
	// Capability protocol attributes
	AttrResourceID       = "gate.resource_id"
	AttrDeviceClass      = "gate.device_class"
	AttrVerdict          = "gate.verdict"
	AttrClassifierRule   = "gate.classifier.rule"
	AttrRedeemOutcome    = "gate.redeem.outcome"
	AttrProbeScore       = "gate.probe.score"
	AttrSignaturePresent = "gate.signature_present"
	AttrError            = "gate.error"

	// Rate limit attributes
	AttrRateLimitCount     = "gate.rate_limit.count"
	AttrRateLimitRemaining = "gate.rate_limit.remaining"

	// Storage attributes
	AttrStorageOperation = "storage.operation"
	AttrStorageType      = "storage.type"

	// Security attributes
	AttrClientIP       = "security.client_ip"
	AttrAuditEventType = "security.audit.event_type"

	// HTTP attributes (in addition to standard semantic conventions)
	AttrHTTPEndpoint   = "http.endpoint"
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError sets an error status on a span (nil-safe)
func SetSpanError(span trace.Span, message string) {
	if span != nil {
		span.SetStatus(codes.Error, message)
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddResourceAttributes adds the requested resource and client device class (nil-safe)
func AddResourceAttributes(span trace.Span, resourceID, deviceClass string) {
	if resourceID != "" {
		SetSpanAttributes(span, attribute.String(AttrResourceID, resourceID))
	}
	if deviceClass != "" {
		SetSpanAttributes(span, attribute.String(AttrDeviceClass, deviceClass))
	}
}

// AddClassifierAttributes adds the traffic verdict and the rule that matched (nil-safe)
func AddClassifierAttributes(span trace.Span, verdict, rule string) {
	SetSpanAttributes(span, attribute.String(AttrVerdict, verdict))
	if rule != "" {
		SetSpanAttributes(span, attribute.String(AttrClassifierRule, rule))
	}
}

// AddRateLimitAttributes adds the window count and remaining budget (nil-safe)
func AddRateLimitAttributes(span trace.Span, count, remaining int) {
	SetSpanAttributes(span,
		attribute.Int(AttrRateLimitCount, count),
		attribute.Int(AttrRateLimitRemaining, remaining),
	)
}

// AddStorageAttributes adds storage operation attributes to a span (nil-safe)
func AddStorageAttributes(span trace.Span, operation, storageType string) {
	SetSpanAttributes(span,
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageType, storageType),
	)
}

// AddHTTPAttributes adds HTTP request attributes to a span (nil-safe)
func AddHTTPAttributes(span trace.Span, method, endpoint string, statusCode int) {
	SetSpanAttributes(span,
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPEndpoint, endpoint),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	)
}

// AddSecurityAttributes adds the client network address to a span (nil-safe).
// Callers must check ShouldLogClientIPs first.
func AddSecurityAttributes(span trace.Span, clientIP string) {
	if clientIP != "" {
		SetSpanAttributes(span, attribute.String(AttrClientIP, clientIP))
	}
}
