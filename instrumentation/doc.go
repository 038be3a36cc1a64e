// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for the invite gate.
//
// It exposes metrics and traces for every layer of the gate:
// - Metrics: counters, histograms and gauges for the HTTP surface, the capability
// protocol, traffic classification, rate limiting and the window store
// - Traces: spans for admission, issuance, redemption and store operations
//
// When Config.Enabled is false, no-op providers are installed and every
// instrument is free to call. When enabled, SDK providers are created and fed
// to Config.MetricReader and Config.SpanProcessor.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "invite-gate",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//		MetricReader:   sdkmetric.NewPeriodicReader(exporter),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	server.SetInstrumentation(inst)
//
// # Available Metrics
//
// HTTP Layer:
//   - gate.http.requests.total{method, endpoint, status} - Total HTTP requests
//   - gate.http.request.duration{endpoint} - Request duration in milliseconds
//
// Capability Protocol:
//   - gate.capability.issued{resource_id} - Capabilities issued
//   - gate.link.resolved{resource_id, device_class} - Capabilities redeemed
//   - gate.capability.redemption_failed{reason} - Rejected redemptions
//
// Security:
//   - gate.classifier.rejected{rule, endpoint} - Requests classified as automated
//   - gate.probe.rejected - Suspicious client probe reports
//   - gate.rate_limit.exceeded{limiter_type} - Rate limit violations
//   - gate.audit.events.total{event_type} - Audit events written
//   - gate.audit.events.throttled{event_type} - Audit events suppressed
//   - gate.audit.throttle.entries - Addresses tracked by the audit throttle
//
// Storage:
//   - gate.storage.operations.total{backend, operation, result} - Window store operations
//   - gate.storage.operation.duration{backend, operation} - Operation duration in milliseconds
//   - gate.window.keys - Client addresses with a tracked window
//
// # Privacy
//
// Client network addresses are only attached to spans when
// Config.LogClientIPs is true. Capability signatures and MAC keys are never
// recorded.
package instrumentation
