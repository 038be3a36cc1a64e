package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	gate "github.com/giantswarm/invite-gate"
	"github.com/giantswarm/invite-gate/capability"
	"github.com/giantswarm/invite-gate/storage/memory"
)

type appConfig struct {
	gate gate.Config

	listenAddr     string
	resourcesFile  string
	mobileTemplate string
	webTemplate    string

	redisAddr         string
	redisPassword     string
	redisDB           int
	evictionThreshold int
	janitorInterval   time.Duration

	otelEnabled  bool
	logClientIPs bool
	metricsAddr  string
}

func (c *appConfig) storeName() string {
	if c.redisAddr != "" {
		return "redis"
	}
	return "memory"
}

// loadConfig reads the environment:
//
//	LISTEN_ADDR                 listen address (default :8080)
//	PUBLIC_URL                  public base URL, used for HSTS and og:url
//	GATE_RESOURCES_FILE         JSON resource table (required)
//	GATE_RESOURCE_<ID>_SECRET   per-resource secret override
//	GATE_MOBILE_LINK_TEMPLATE   link template for android and ios
//	GATE_WEB_LINK_TEMPLATE      link template for other devices
//	GATE_MAC_KEY                base64 MAC key
//	GATE_MAC_SECRET             passphrase the MAC key is derived from
//	GATE_MAC_ALGORITHM          hmac-sha256 (default) or blake2b-256
//	GATE_ISSUANCE_SKEW          issuance tolerance (default 10s)
//	GATE_REDEMPTION_SKEW        redemption tolerance (default 30s)
//	RATE_WINDOW                 rate limit window (default 15m)
//	RATE_MAX                    requests per window (default 20)
//	RATE_EVICTION_THRESHOLD     in-memory key count that triggers sweeps
//	RATE_JANITOR_INTERVAL       in-memory sweep interval (default 1m)
//	RATE_REDIS_ADDR             use a shared redis window store
//	RATE_REDIS_PASSWORD, RATE_REDIS_DB
//	TRUST_PROXY                 trust X-Forwarded-For / X-Real-IP
//	TRUSTED_PROXY_COUNT         proxies appending to X-Forwarded-For
//	AUDIT_LOGGING               security audit events (default true)
//	PROBE_CHECK                 honour client probe reports (default true)
//	MAX_BODY_BYTES              API request body limit
//	HELP_URL, PAGE_DESCRIPTION, PAGE_IMAGE_URL, PAGE_REDIRECT_DELAY
//	OTEL_ENABLED, OTEL_LOG_CLIENT_IPS, METRICS_ADDR
//	LOG_JSON, LOG_LEVEL
func loadConfig(logger *slog.Logger) (*appConfig, error) {
	cfg := &appConfig{
		listenAddr:        getEnvOrDefault("LISTEN_ADDR", ":8080"),
		resourcesFile:     os.Getenv("GATE_RESOURCES_FILE"),
		mobileTemplate:    os.Getenv("GATE_MOBILE_LINK_TEMPLATE"),
		webTemplate:       os.Getenv("GATE_WEB_LINK_TEMPLATE"),
		redisAddr:         os.Getenv("RATE_REDIS_ADDR"),
		redisPassword:     os.Getenv("RATE_REDIS_PASSWORD"),
		redisDB:           getIntEnv("RATE_REDIS_DB", 0),
		evictionThreshold: getIntEnv("RATE_EVICTION_THRESHOLD", memory.DefaultEvictionThreshold),
		janitorInterval:   getDurationEnv("RATE_JANITOR_INTERVAL", time.Minute),
		otelEnabled:       getBoolEnv("OTEL_ENABLED", false),
		logClientIPs:      getBoolEnv("OTEL_LOG_CLIENT_IPS", false),
		metricsAddr:       getEnvOrDefault("METRICS_ADDR", ":9090"),
	}
	if cfg.resourcesFile == "" {
		return nil, fmt.Errorf("GATE_RESOURCES_FILE is required")
	}

	alg, err := capability.ParseAlgorithm(os.Getenv("GATE_MAC_ALGORITHM"))
	if err != nil {
		return nil, err
	}
	key, err := loadMACKey(logger)
	if err != nil {
		return nil, err
	}

	cfg.gate = gate.Config{
		ServerURL: strings.TrimSuffix(os.Getenv("PUBLIC_URL"), "/"),
		Capability: gate.CapabilityConfig{
			Key:            key,
			Algorithm:      alg,
			IssuanceSkew:   getDurationEnv("GATE_ISSUANCE_SKEW", capability.DefaultIssuanceSkew),
			RedemptionSkew: getDurationEnv("GATE_REDEMPTION_SKEW", capability.DefaultRedemptionSkew),
		},
		RateLimit: gate.RateLimitConfig{
			Window:            getDurationEnv("RATE_WINDOW", 15*time.Minute),
			Limit:             getIntEnv("RATE_MAX", 20),
			TrustProxy:        getBoolEnv("TRUST_PROXY", false),
			TrustedProxyCount: getIntEnv("TRUSTED_PROXY_COUNT", 0),
		},
		Security: gate.SecurityConfig{
			EnableAuditLogging: getBoolEnv("AUDIT_LOGGING", true),
			DisableProbeCheck:  !getBoolEnv("PROBE_CHECK", true),
			MaxBodyBytes:       int64(getIntEnv("MAX_BODY_BYTES", gate.DefaultMaxBodyBytes)),
		},
		Page: gate.PageConfig{
			HelpURL:       os.Getenv("HELP_URL"),
			Description:   os.Getenv("PAGE_DESCRIPTION"),
			ImageURL:      os.Getenv("PAGE_IMAGE_URL"),
			RedirectDelay: getDurationEnv("PAGE_REDIRECT_DELAY", gate.DefaultRedirectDelay),
		},
		Logger: logger,
	}
	return cfg, nil
}

// loadMACKey prefers an explicit base64 key, then a passphrase, and finally
// generates a throwaway key.
func loadMACKey(logger *slog.Logger) ([]byte, error) {
	if encoded := os.Getenv("GATE_MAC_KEY"); encoded != "" {
		key, err := capability.DecodeKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("GATE_MAC_KEY: %w", err)
		}
		return key, nil
	}
	if secret := os.Getenv("GATE_MAC_SECRET"); secret != "" {
		return capability.KeyFromSecret(secret, capability.DefaultKeyInfo)
	}

	logger.Warn("Generating a random MAC key - signatures won't survive a restart or work across replicas",
		"recommendation", "Set GATE_MAC_KEY or GATE_MAC_SECRET")
	return capability.GenerateKey()
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: getLogLevel()}
	if getBoolEnv("LOG_JSON", true) {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func getLogLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Invalid duration in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return d
}
