// Package security provides the admission and hardening layer of the invite
// gate: traffic classification, client context extraction, sliding-window
// rate limiting, audit logging and HTTP security headers.
//
// # Traffic Classification
//
// Classifier evaluates a declarative list of named, case-insensitive patterns
// against the client identification string (User-Agent). Strings shorter than
// MinIdentificationLength are always SuspectedBot. The result is a two-valued
// Verdict plus the name of the matching rule for audit logs.
//
// # Rate Limiting
//
// RateLimiter keeps a rolling window of request instants per network address
// in an injected storage.WindowStore. Every call is recorded, and a call is
// allowed iff the window holds at most Limit instants afterwards.
//
// Default configuration:
//   - Window: 15 minutes
//   - Limit: 20 requests
//
// The limiter fails closed: if the store errors, the request is denied.
//
// ## Example Usage
//
//	store := memory.New()
//	limiter := security.NewRateLimiter(store, 15*time.Minute, 20, logger)
//
//	d, err := limiter.Allow(ctx, client.NetworkAddress)
//	if !d.Allowed {
//	    // 429
//	}
//
// # Audit Logging
//
// Auditor writes "security_audit" records with a UUID event ID, a hashed
// network address and a truncated identification string. An optional
// EventThrottle (token bucket per address, LRU-bounded) keeps a single noisy
// client from flooding the log.
//
// ## Monitoring
//
// EventThrottle.Stats() reports:
//   - CurrentEntries: addresses being tracked
//   - TotalEvictions: LRU evictions performed
//   - TotalSuppressed: events dropped by the throttle
//   - MemoryPressure: percentage of MaxEntries in use
//
// A rapidly growing TotalSuppressed usually means a single address is
// hammering the gate.
package security
