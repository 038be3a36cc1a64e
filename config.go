package gate

import (
	"log/slog"
	"time"

	"github.com/giantswarm/invite-gate/capability"
	"github.com/giantswarm/invite-gate/security"
)

const (
	// DefaultMaxBodyBytes caps API request bodies.
	DefaultMaxBodyBytes = 4 << 10

	// DefaultAuditEventsPerSecond and DefaultAuditBurst bound audit log
	// volume per network address.
	DefaultAuditEventsPerSecond = 1.0
	DefaultAuditBurst           = 10

	// DefaultAuditThrottleEntries bounds the number of addresses tracked by
	// the audit throttle.
	DefaultAuditThrottleEntries = 10000

	// DefaultRedirectDelay is how long the mobile page counts down before
	// opening the native app.
	DefaultRedirectDelay = 3 * time.Second
)

// Config holds the gate configuration.
// Structured using composition, mirroring the environment variables read by
// cmd/invite-gate.
type Config struct {
	// ServerURL is the public base URL of the gate, e.g. https://gate.example.com.
	// Used for HSTS decisions and absolute og:url values. Optional.
	ServerURL string

	// Capability protocol settings
	Capability CapabilityConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Security settings (secure by default)
	Security SecurityConfig

	// Bootstrap page settings
	Page PageConfig

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

// CapabilityConfig holds the MAC key and skew tolerances.
type CapabilityConfig struct {
	// Key is the MAC key. When empty, a random key is generated at startup,
	// so capabilities do not survive a restart and replicas disagree.
	Key []byte

	// Algorithm selects the MAC construction. Default: hmac-sha256.
	Algorithm capability.Algorithm

	// IssuanceSkew is the tolerance for the client timestamp at issuance.
	// Default: 10 seconds.
	IssuanceSkew time.Duration

	// RedemptionSkew is the tolerance for the client timestamp at redemption.
	// Default: 30 seconds.
	RedemptionSkew time.Duration
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// Window is the rolling window length. Default: 15 minutes.
	Window time.Duration

	// Limit is the number of requests allowed per address per window.
	// Default: 20.
	Limit int

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// TrustedProxyCount is the number of proxies in front of the gate that
	// append to X-Forwarded-For. Zero takes the first hop.
	TrustedProxyCount int
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	// EnableAuditLogging enables security audit logging.
	EnableAuditLogging bool

	// AuditEventsPerSecond and AuditBurst throttle audit events per address.
	AuditEventsPerSecond float64
	AuditBurst           int

	// AuditThrottleEntries bounds the audit throttle's address table.
	AuditThrottleEntries int

	// MaxBodyBytes caps API request bodies. Default: 4 KiB.
	MaxBodyBytes int64

	// DisableProbeCheck ignores the self-reported probe result on issuance.
	DisableProbeCheck bool
}

// PageConfig holds bootstrap page settings.
type PageConfig struct {
	// HelpURL is linked from the mobile help tip. Empty hides the tip.
	HelpURL string

	// Description is used for the og:description meta tag.
	Description string

	// ImageURL is used for the og:image meta tag. Optional.
	ImageURL string

	// RedirectDelay is the mobile countdown. Default: 3 seconds.
	RedirectDelay time.Duration
}

// applyDefaults applies secure defaults and logs warnings for weak settings.
func applyDefaults(config *Config, logger *slog.Logger) *Config {
	if config.Capability.Algorithm == "" {
		config.Capability.Algorithm = capability.AlgorithmHMACSHA256
	}
	if config.Capability.IssuanceSkew <= 0 {
		config.Capability.IssuanceSkew = capability.DefaultIssuanceSkew
	}
	if config.Capability.RedemptionSkew <= 0 {
		config.Capability.RedemptionSkew = capability.DefaultRedemptionSkew
	}
	if config.RateLimit.Window <= 0 {
		config.RateLimit.Window = security.DefaultRateWindow
	}
	if config.RateLimit.Limit <= 0 {
		config.RateLimit.Limit = security.DefaultRateLimit
	}
	if config.RateLimit.TrustedProxyCount < 0 {
		config.RateLimit.TrustedProxyCount = 0
	}
	if config.Security.AuditEventsPerSecond <= 0 {
		config.Security.AuditEventsPerSecond = DefaultAuditEventsPerSecond
	}
	if config.Security.AuditBurst <= 0 {
		config.Security.AuditBurst = DefaultAuditBurst
	}
	if config.Security.AuditThrottleEntries <= 0 {
		config.Security.AuditThrottleEntries = DefaultAuditThrottleEntries
	}
	if config.Security.MaxBodyBytes <= 0 {
		config.Security.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.Page.RedirectDelay <= 0 {
		config.Page.RedirectDelay = DefaultRedirectDelay
	}

	if config.Capability.RedemptionSkew < config.Capability.IssuanceSkew {
		logger.Warn("Redemption skew is shorter than issuance skew",
			"issuance_skew", config.Capability.IssuanceSkew,
			"redemption_skew", config.Capability.RedemptionSkew,
			"risk", "Clients may fail redemption right after a successful issuance")
	}
	if config.Capability.RedemptionSkew > 5*time.Minute {
		logger.Warn("SECURITY WARNING: Long redemption skew",
			"redemption_skew", config.Capability.RedemptionSkew,
			"risk", "Leaked signatures stay redeemable for longer")
	}
	if config.RateLimit.TrustProxy {
		logger.Warn("SECURITY NOTICE: Trusting proxy headers",
			"risk", "Address spoofing if proxy is not properly configured",
			"trusted_proxy_count", config.RateLimit.TrustedProxyCount)
	}
	if config.Security.DisableProbeCheck {
		logger.Info("Client probe reports are ignored on issuance")
	}

	return config
}
