package security

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/invite-gate/instrumentation"
	"github.com/giantswarm/invite-gate/internal/helpers"
)

// maxLoggedIdentificationLength caps how much of a User-Agent goes into a log line.
const maxLoggedIdentificationLength = 128

// Auditor handles security event logging with PII protection.
// Network addresses are hashed; identification strings are truncated.
type Auditor struct {
	logger          *slog.Logger
	enabled         bool
	throttle        *EventThrottle
	instrumentation *instrumentation.Instrumentation
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// SetThrottle limits events per network address. Events that exceed the
// throttle are counted but not logged.
func (a *Auditor) SetThrottle(t *EventThrottle) {
	a.throttle = t
}

// SetInstrumentation enables audit event metrics.
func (a *Auditor) SetInstrumentation(inst *instrumentation.Instrumentation) {
	a.instrumentation = inst
	if inst != nil && a.throttle != nil {
		if err := inst.RegisterThrottleCallback(func() int64 { return int64(a.throttle.Len()) }); err != nil {
			a.logger.Warn("Failed to register audit throttle callback", "error", err)
		}
	}
}

// Event represents a security audit event
type Event struct {
	ID                   string
	Type                 string
	ResourceID           string
	NetworkAddress       string
	IdentificationString string
	RequestID            string
	Details              map[string]any
	Timestamp            time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(ctx context.Context, event Event) {
	if !a.enabled {
		return
	}

	if a.throttle != nil && !a.throttle.Allow(event.NetworkAddress) {
		if a.instrumentation != nil {
			a.instrumentation.Metrics().RecordAuditEventThrottled(ctx, event.Type)
		}
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.RequestID == "" {
		event.RequestID = GetRequestID(ctx)
	}
	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_id", event.ID,
		"event_type", event.Type,
		"resource_id", event.ResourceID,
		"address_hash", helpers.HashForLogging(event.NetworkAddress),
		"user_agent", helpers.SafeTruncate(event.IdentificationString, maxLoggedIdentificationLength),
		"request_id", event.RequestID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)

	if a.instrumentation != nil {
		a.instrumentation.Metrics().RecordAuditEvent(ctx, event.Type)
	}
}

// LogBotRejected logs a classifier rejection
func (a *Auditor) LogBotRejected(ctx context.Context, client ClientContext, resourceID, rule string) {
	a.LogEvent(ctx, Event{
		Type:                 EventBotRejected,
		ResourceID:           resourceID,
		NetworkAddress:       client.NetworkAddress,
		IdentificationString: client.IdentificationString,
		Details: map[string]any{
			"rule": rule,
		},
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(ctx context.Context, client ClientContext, resourceID string, count int) {
	a.LogEvent(ctx, Event{
		Type:           EventRateLimitExceeded,
		ResourceID:     resourceID,
		NetworkAddress: client.NetworkAddress,
		Details: map[string]any{
			"count": count,
		},
	})
}

// LogCapabilityIssued logs a successful issuance
func (a *Auditor) LogCapabilityIssued(ctx context.Context, client ClientContext, resourceID string) {
	a.LogEvent(ctx, Event{
		Type:           EventCapabilityIssued,
		ResourceID:     resourceID,
		NetworkAddress: client.NetworkAddress,
	})
}

// LogCapabilityRedeemed logs a successful redemption
func (a *Auditor) LogCapabilityRedeemed(ctx context.Context, client ClientContext, resourceID string) {
	a.LogEvent(ctx, Event{
		Type:           EventCapabilityRedeemed,
		ResourceID:     resourceID,
		NetworkAddress: client.NetworkAddress,
		Details: map[string]any{
			"device_class": string(client.DeviceClass),
		},
	})
}

// LogTimestampRejected logs an issuance request whose timestamp is outside
// the issuance tolerance
func (a *Auditor) LogTimestampRejected(ctx context.Context, client ClientContext, resourceID string, skew time.Duration) {
	a.logSkewEvent(ctx, EventTimestampRejected, "issuance", client, resourceID, skew)
}

// LogRedemptionFailure logs a rejected redemption of the given event type
func (a *Auditor) LogRedemptionFailure(ctx context.Context, eventType string, client ClientContext, resourceID string, skew time.Duration) {
	a.logSkewEvent(ctx, eventType, "redemption", client, resourceID, skew)
}

func (a *Auditor) logSkewEvent(ctx context.Context, eventType, phase string, client ClientContext, resourceID string, skew time.Duration) {
	a.LogEvent(ctx, Event{
		Type:                 eventType,
		ResourceID:           resourceID,
		NetworkAddress:       client.NetworkAddress,
		IdentificationString: client.IdentificationString,
		Details: map[string]any{
			"phase":        phase,
			"skew_seconds": int64(skew / time.Second),
		},
	})
}
