package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/invite-gate/capability"
	"github.com/giantswarm/invite-gate/instrumentation"
	"github.com/giantswarm/invite-gate/internal/helpers"
	"github.com/giantswarm/invite-gate/resource"
	"github.com/giantswarm/invite-gate/security"
)

// Endpoint labels used in metrics and classifier rejection counts
const (
	endpointResource  = "/{resourceId}"
	endpointSignature = "/api/get-signature"
	endpointLink      = "/api/get-link"
	endpointHealth    = "/healthz"
)

// Server implements the gate logic. It admits page requests, issues
// capabilities and redeems them for links. It holds no per-client state of
// its own; the only shared mutable state lives behind the rate limiter's store.
type Server struct {
	Config          *Config
	Classifier      *security.Classifier
	RateLimiter     *security.RateLimiter
	Protocol        *capability.Protocol
	Resolver        *resource.Resolver
	Auditor         *security.Auditor
	Instrumentation *instrumentation.Instrumentation

	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewServer creates a gate server.
func NewServer(
	resolver *resource.Resolver,
	protocol *capability.Protocol,
	rateLimiter *security.RateLimiter,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if protocol == nil {
		return nil, fmt.Errorf("capability protocol is required")
	}
	if rateLimiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = config.Logger
	}
	if logger == nil {
		logger = slog.Default()
	}

	config = applyDefaults(config, logger)

	// Disabled instrumentation hands out noop providers.
	inst, err := instrumentation.New(instrumentation.Config{Enabled: false})
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation: %w", err)
	}

	auditor := security.NewAuditor(logger, config.Security.EnableAuditLogging)
	auditor.SetThrottle(security.NewEventThrottle(
		config.Security.AuditEventsPerSecond,
		config.Security.AuditBurst,
		config.Security.AuditThrottleEntries,
		logger,
	))

	return &Server{
		Config:          config,
		Classifier:      security.NewClassifier(),
		RateLimiter:     rateLimiter,
		Protocol:        protocol,
		Resolver:        resolver,
		Auditor:         auditor,
		Instrumentation: inst,
		logger:          logger,
		tracer:          inst.Tracer("server"),
		now:             time.Now,
	}, nil
}

// SetInstrumentation enables metrics and tracing for the server and its auditor.
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst == nil {
		return
	}
	s.Instrumentation = inst
	s.tracer = inst.Tracer("server")
	s.Auditor.SetInstrumentation(inst)
}

// SetClock replaces the time source. Intended for tests.
func (s *Server) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

func (s *Server) metrics() *instrumentation.Metrics {
	return s.Instrumentation.Metrics()
}

func (s *Server) traceClient(span trace.Span, client security.ClientContext) {
	if s.Instrumentation.ShouldLogClientIPs() {
		instrumentation.AddSecurityAttributes(span, client.NetworkAddress)
	}
}

// screen runs the checks shared by the page request and issuance: the
// resource must exist and the classifier must accept the client. Both
// failures are reported as ErrNotFound so a rejected client cannot tell them apart.
func (s *Server) screen(ctx context.Context, span trace.Span, endpoint, resourceID string, client security.ClientContext) (resource.Resource, error) {
	res, err := s.Resolver.Registry().Lookup(resourceID)
	if err != nil {
		s.Auditor.LogEvent(ctx, security.Event{
			Type:           security.EventUnknownResource,
			ResourceID:     helpers.SafeTruncate(resourceID, resource.MaxIDLength),
			NetworkAddress: client.NetworkAddress,
		})
		instrumentation.SetSpanError(span, "unknown resource")
		return resource.Resource{}, ErrNotFound()
	}

	verdict, rule := s.Classifier.ClassifyWithReason(client.IdentificationString)
	instrumentation.AddClassifierAttributes(span, verdict.String(), rule)
	if verdict != security.VerdictHuman {
		s.logger.Debug("Classifier rejected client", "resource_id", resourceID, "rule", rule, "endpoint", endpoint)
		s.metrics().RecordClassifierRejection(ctx, rule, endpoint)
		s.Auditor.LogBotRejected(ctx, client, resourceID, rule)
		instrumentation.SetSpanError(span, "classifier rejected client")
		return resource.Resource{}, ErrNotFound()
	}

	return res, nil
}

// charge records the request against the client's window.
func (s *Server) charge(ctx context.Context, span trace.Span, limiterType, resourceID string, client security.ClientContext) error {
	decision, err := s.RateLimiter.Allow(ctx, client.NetworkAddress)
	if err != nil {
		s.logger.Error("Rate limit store unavailable", "resource_id", resourceID, "error", err)
		s.Auditor.LogEvent(ctx, security.Event{
			Type:           security.EventRateLimitStoreFailure,
			ResourceID:     resourceID,
			NetworkAddress: client.NetworkAddress,
		})
		instrumentation.RecordError(span, err)
		return ErrUnavailable()
	}

	instrumentation.AddRateLimitAttributes(span, decision.Count, decision.Remaining)
	if !decision.Allowed {
		s.logger.Info("Rate limit exceeded",
			"resource_id", resourceID,
			"limiter", limiterType,
			"count", decision.Count,
			"limit", decision.Limit,
			"address_class", helpers.ClassifyAddress(client.NetworkAddress).String())
		s.metrics().RecordRateLimitExceeded(ctx, limiterType)
		s.Auditor.LogRateLimitExceeded(ctx, client, resourceID, decision.Count)
		instrumentation.SetSpanError(span, "rate limit exceeded")
		e := ErrRateLimited()
		e.RetryAfter = decision.RetryAfter
		return e
	}
	return nil
}

// Admit decides whether the bootstrap page for resourceID is served to client.
// Checks run in order: resource exists, classifier, rate limit.
func (s *Server) Admit(ctx context.Context, resourceID string, client security.ClientContext) (resource.Resource, error) {
	ctx, span := s.tracer.Start(ctx, "gate.admit")
	defer span.End()

	instrumentation.AddResourceAttributes(span, resourceID, string(client.DeviceClass))
	s.traceClient(span, client)

	res, err := s.screen(ctx, span, endpointResource, resourceID, client)
	if err != nil {
		return resource.Resource{}, err
	}
	if err := s.charge(ctx, span, "page", resourceID, client); err != nil {
		return resource.Resource{}, err
	}

	instrumentation.SetSpanSuccess(span)
	return res, nil
}

// IssueCapability runs the issuance phase and returns the signature.
//
// Preconditions, in order:
//  1. resourceId and timestamp are present and well-formed (ErrInvalidRequest)
//  2. the resource exists, the classifier accepts the client and any probe
//     report is not suspicious (ErrForbidden, identical for all three)
//  3. the rate limiter allows the request (ErrRateLimited)
//  4. the timestamp is within the issuance skew (ErrInvalidTimestamp)
func (s *Server) IssueCapability(ctx context.Context, req IssueRequest, client security.ClientContext) (string, error) {
	ctx, span := s.tracer.Start(ctx, "gate.issue")
	defer span.End()

	instrumentation.AddResourceAttributes(span, req.ResourceID, string(client.DeviceClass))
	s.traceClient(span, client)

	if req.ResourceID == "" || !req.Timestamp.Set {
		instrumentation.SetSpanError(span, "missing fields")
		return "", ErrInvalidRequest("resourceId and timestamp are required")
	}
	if !resource.ValidID(req.ResourceID) {
		instrumentation.SetSpanError(span, "malformed resource id")
		return "", ErrInvalidRequest("resourceId is malformed")
	}

	if _, err := s.screen(ctx, span, endpointSignature, req.ResourceID, client); err != nil {
		return "", ErrForbidden()
	}

	if !s.Config.Security.DisableProbeCheck {
		score, suspicious := req.Probe.Evaluate()
		instrumentation.SetSpanAttributes(span, attribute.Int(instrumentation.AttrProbeScore, score))
		if suspicious {
			s.metrics().RecordProbeRejection(ctx)
			s.Auditor.LogEvent(ctx, security.Event{
				Type:                 security.EventProbeRejected,
				ResourceID:           req.ResourceID,
				NetworkAddress:       client.NetworkAddress,
				IdentificationString: client.IdentificationString,
				Details:              map[string]any{"score": score},
			})
			instrumentation.SetSpanError(span, "probe reported automation")
			return "", ErrForbidden()
		}
	}

	if err := s.charge(ctx, span, "signature", req.ResourceID, client); err != nil {
		return "", err
	}

	now := s.now()
	claim := capability.Claim{
		ResourceID:           req.ResourceID,
		Timestamp:            req.Timestamp.Value,
		NetworkAddress:       client.NetworkAddress,
		IdentificationString: client.IdentificationString,
	}
	sig, err := s.Protocol.Issue(claim, now)
	if err != nil {
		if errors.Is(err, capability.ErrTimestampInvalid) {
			s.Auditor.LogTimestampRejected(ctx, client, req.ResourceID, security.Skew(now, req.Timestamp.Value))
			instrumentation.SetSpanError(span, "timestamp outside tolerance")
			return "", ErrInvalidTimestamp()
		}
		instrumentation.RecordError(span, err)
		return "", ErrServerError("Failed to issue capability")
	}

	s.metrics().RecordCapabilityIssued(ctx, req.ResourceID)
	s.Auditor.LogCapabilityIssued(ctx, client, req.ResourceID)
	instrumentation.SetSpanSuccess(span)
	return sig, nil
}

// RedeemCapability runs the redemption phase and returns the resolved link.
//
// The signature is recomputed from the current request's context. A genuine
// signature that arrived too late yields ReasonExpired; every other failure
// yields ReasonInvalidSignature.
func (s *Server) RedeemCapability(ctx context.Context, req RedeemRequest, client security.ClientContext) (string, error) {
	ctx, span := s.tracer.Start(ctx, "gate.redeem")
	defer span.End()

	instrumentation.AddResourceAttributes(span, req.ResourceID, string(client.DeviceClass))
	instrumentation.SetSpanAttributes(span, attribute.Bool(instrumentation.AttrSignaturePresent, req.Signature != ""))
	s.traceClient(span, client)

	if req.ResourceID == "" || !req.Timestamp.Set || req.Signature == "" {
		instrumentation.SetSpanError(span, "missing fields")
		return "", ErrInvalidRequest("resourceId, timestamp and signature are required")
	}

	now := s.now()
	claim := capability.Claim{
		ResourceID:           req.ResourceID,
		Timestamp:            req.Timestamp.Value,
		NetworkAddress:       client.NetworkAddress,
		IdentificationString: client.IdentificationString,
	}
	if err := s.Protocol.Redeem(claim, req.Signature, now); err != nil {
		eventType, reason, outcome := security.EventCapabilityInvalid, ReasonInvalidSignature, "invalid_signature"
		if errors.Is(err, capability.ErrExpired) {
			eventType, reason, outcome = security.EventCapabilityExpired, ReasonExpired, "expired"
		}
		s.metrics().RecordRedemptionFailed(ctx, outcome)
		s.Auditor.LogRedemptionFailure(ctx, eventType, client, req.ResourceID, security.Skew(now, req.Timestamp.Value))
		instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrRedeemOutcome, outcome))
		instrumentation.SetSpanError(span, outcome)
		return "", ErrRedemption(reason)
	}

	link, err := s.Resolver.Resolve(req.ResourceID, client.DeviceClass)
	if err != nil {
		// Only reachable if a signature was minted for a resource that is no
		// longer configured, e.g. across a restart with a shared key.
		s.metrics().RecordRedemptionFailed(ctx, "unknown_resource")
		s.Auditor.LogEvent(ctx, security.Event{
			Type:           security.EventUnknownResource,
			ResourceID:     req.ResourceID,
			NetworkAddress: client.NetworkAddress,
		})
		instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrRedeemOutcome, "unknown_resource"))
		instrumentation.SetSpanError(span, "unknown resource")
		return "", ErrNotFound()
	}

	s.metrics().RecordLinkResolved(ctx, req.ResourceID, string(client.DeviceClass))
	s.Auditor.LogCapabilityRedeemed(ctx, client, req.ResourceID)
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrRedeemOutcome, "resolved"))
	instrumentation.SetSpanSuccess(span)
	return link, nil
}
