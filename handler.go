package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/invite-gate/instrumentation"
	"github.com/giantswarm/invite-gate/security"
)

// Handler is a thin HTTP adapter for the gate Server.
// It handles HTTP requests and delegates to the Server for business logic.
type Handler struct {
	server *Server
	logger *slog.Logger
	tracer trace.Tracer // OpenTelemetry tracer for HTTP layer
	pages  *pageRenderer
}

// NewHandler creates a new HTTP handler
func NewHandler(server *Server, logger *slog.Logger) (*Handler, error) {
	if server == nil {
		return nil, fmt.Errorf("server is required")
	}
	if logger == nil {
		logger = server.Logger()
	}

	pages, err := newPageRenderer(server.Config)
	if err != nil {
		return nil, err
	}

	return &Handler{
		server: server,
		logger: logger,
		tracer: server.Instrumentation.Tracer("http"),
		pages:  pages,
	}, nil
}

// RegisterRoutes registers the gate routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.ServeHealth)
	mux.HandleFunc("/api/get-signature", h.ServeGetSignature)
	mux.HandleFunc("/api/get-link", h.ServeGetLink)
	mux.HandleFunc("GET /{resourceId}", h.ServeResource)
	mux.HandleFunc("/", h.serveNotFound)
}

// Routes returns all gate routes wrapped in the request ID middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return security.RequestIDMiddleware(mux)
}

func (h *Handler) clientContext(r *http.Request) security.ClientContext {
	cfg := h.server.Config.RateLimit
	return security.NewClientContext(r, cfg.TrustProxy, cfg.TrustedProxyCount)
}

// ServeResource handles GET /{resourceId}. Unknown resources and rejected
// clients get the same 404 page; rate-limited clients get it with a 429.
func (h *Handler) ServeResource(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "gate.http.resource")
	defer span.End()

	client := h.clientContext(r)
	resourceID := r.PathValue("resourceId")

	res, err := h.server.Admit(ctx, resourceID, client)
	if err != nil {
		status := statusOf(err)
		if gateErr, ok := asGateError(err); ok {
			setRetryAfter(w, gateErr)
		}
		h.recordHTTPMetrics(endpointResource, r.Method, status, startTime)
		instrumentation.AddHTTPAttributes(span, r.Method, endpointResource, status)
		writeNotFoundPage(w, h.server.Config.ServerURL, status)
		return
	}

	if err := h.pages.writeBootstrap(w, res, client.DeviceClass); err != nil {
		h.logger.Error("Failed to serve bootstrap page", "resource_id", res.ID, "request_id", security.GetRequestID(ctx), "error", err)
		instrumentation.RecordError(span, err)
		h.recordHTTPMetrics(endpointResource, r.Method, http.StatusInternalServerError, startTime)
		writeNotFoundPage(w, h.server.Config.ServerURL, http.StatusInternalServerError)
		return
	}

	h.recordHTTPMetrics(endpointResource, r.Method, http.StatusOK, startTime)
	instrumentation.AddHTTPAttributes(span, r.Method, endpointResource, http.StatusOK)
	instrumentation.SetSpanSuccess(span)
}

// ServeGetSignature handles POST /api/get-signature.
func (h *Handler) ServeGetSignature(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, endpointSignature, r.Method, startTime)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "gate.http.get_signature")
	defer span.End()

	var req IssueRequest
	if err := h.decode(w, r, &req); err != nil {
		h.recordHTTPMetrics(endpointSignature, r.Method, err.Status, startTime)
		instrumentation.SetSpanError(span, "malformed body")
		h.writeError(w, err)
		return
	}

	sig, err := h.server.IssueCapability(ctx, req, h.clientContext(r))
	if err != nil {
		h.fail(w, span, endpointSignature, r.Method, err, startTime)
		return
	}

	h.recordHTTPMetrics(endpointSignature, r.Method, http.StatusOK, startTime)
	instrumentation.AddHTTPAttributes(span, r.Method, endpointSignature, http.StatusOK)
	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, SignatureResponse{Signature: sig})
}

// ServeGetLink handles POST /api/get-link.
func (h *Handler) ServeGetLink(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, endpointLink, r.Method, startTime)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "gate.http.get_link")
	defer span.End()

	var req RedeemRequest
	if err := h.decode(w, r, &req); err != nil {
		h.recordHTTPMetrics(endpointLink, r.Method, err.Status, startTime)
		instrumentation.SetSpanError(span, "malformed body")
		h.writeError(w, err)
		return
	}

	link, err := h.server.RedeemCapability(ctx, req, h.clientContext(r))
	if err != nil {
		h.fail(w, span, endpointLink, r.Method, err, startTime)
		return
	}

	h.recordHTTPMetrics(endpointLink, r.Method, http.StatusOK, startTime)
	instrumentation.AddHTTPAttributes(span, r.Method, endpointLink, http.StatusOK)
	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, LinkResponse{Link: link})
}

// ServeHealth handles GET /healthz.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	h.recordHTTPMetrics(endpointHealth, r.Method, http.StatusOK, startTime)
}

func (h *Handler) serveNotFound(w http.ResponseWriter, r *http.Request) {
	writeNotFoundPage(w, h.server.Config.ServerURL, http.StatusNotFound)
}

// decode reads a size-limited JSON body into v. Unknown fields are ignored
// so the page can send extra probe details.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) *GateError {
	body := http.MaxBytesReader(w, r.Body, h.server.Config.Security.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return NewGateError(ErrorCodeInvalidRequest, "Request body too large", http.StatusRequestEntityTooLarge)
		}
		return ErrInvalidRequest("Request body must be a JSON object")
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, span trace.Span, endpoint, method string, err error, startTime time.Time) {
	gateErr, ok := asGateError(err)
	if !ok {
		h.logger.Error("Unexpected gate error", "endpoint", endpoint, "error", err)
		gateErr = ErrServerError("Internal error")
	}
	h.recordHTTPMetrics(endpoint, method, gateErr.Status, startTime)
	instrumentation.AddHTTPAttributes(span, method, endpoint, gateErr.Status)
	h.writeError(w, gateErr)
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, endpoint, method string, startTime time.Time) {
	h.recordHTTPMetrics(endpoint, method, http.StatusMethodNotAllowed, startTime)
	w.Header().Set("Allow", http.MethodPost)
	h.writeError(w, NewGateError(ErrorCodeMethodNotAllowed, "Method not allowed", http.StatusMethodNotAllowed))
}

func (h *Handler) writeError(w http.ResponseWriter, err *GateError) {
	setRetryAfter(w, err)
	h.writeJSON(w, err.Status, ErrorResponse{
		Error:       err.Code,
		Description: err.Description,
		Reason:      err.Reason,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	security.SetSecurityHeaders(w, h.server.Config.ServerURL)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) recordHTTPMetrics(endpoint, method string, status int, startTime time.Time) {
	duration := time.Since(startTime).Seconds() * 1000 // convert to milliseconds
	h.server.metrics().RecordHTTPRequest(context.Background(), method, endpoint, status, duration)
}

func setRetryAfter(w http.ResponseWriter, err *GateError) {
	if err.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int((err.RetryAfter+time.Second-1)/time.Second)))
	}
}

func asGateError(err error) (*GateError, bool) {
	var gateErr *GateError
	if errors.As(err, &gateErr) {
		return gateErr, true
	}
	return nil, false
}

func statusOf(err error) int {
	if gateErr, ok := asGateError(err); ok {
		return gateErr.Status
	}
	return http.StatusInternalServerError
}
