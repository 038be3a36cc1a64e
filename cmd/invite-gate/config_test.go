package main

import (
	"bytes"
	"encoding/base64"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/giantswarm/invite-gate/capability"
)

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"false", true, false},
		{"nope", true, false},
	}
	for _, tt := range tests {
		t.Setenv("GATE_TEST_BOOL", tt.value)
		if got := getBoolEnv("GATE_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("getBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestGetIntAndDurationEnv(t *testing.T) {
	t.Setenv("GATE_TEST_INT", "42")
	if got := getIntEnv("GATE_TEST_INT", 1); got != 42 {
		t.Errorf("getIntEnv = %d, want 42", got)
	}
	t.Setenv("GATE_TEST_INT", "forty")
	if got := getIntEnv("GATE_TEST_INT", 1); got != 1 {
		t.Errorf("getIntEnv(invalid) = %d, want default 1", got)
	}

	t.Setenv("GATE_TEST_DURATION", "90s")
	if got := getDurationEnv("GATE_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("getDurationEnv = %v, want 90s", got)
	}
	t.Setenv("GATE_TEST_DURATION", "soon")
	if got := getDurationEnv("GATE_TEST_DURATION", time.Minute); got != time.Minute {
		t.Errorf("getDurationEnv(invalid) = %v, want default 1m", got)
	}
}

func TestGetLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"loud":  slog.LevelInfo,
	}
	for value, want := range tests {
		t.Setenv("LOG_LEVEL", value)
		if got := getLogLevel(); got != want {
			t.Errorf("getLogLevel(%q) = %v, want %v", value, got, want)
		}
	}
}

func TestLoadMACKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	t.Run("explicit key", func(t *testing.T) {
		raw := bytes.Repeat([]byte{0x07}, capability.KeySize)
		t.Setenv("GATE_MAC_KEY", base64.StdEncoding.EncodeToString(raw))
		t.Setenv("GATE_MAC_SECRET", "ignored")
		key, err := loadMACKey(logger)
		if err != nil {
			t.Fatalf("loadMACKey() error = %v", err)
		}
		if !bytes.Equal(key, raw) {
			t.Error("explicit key not used")
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		t.Setenv("GATE_MAC_KEY", "!!!")
		if _, err := loadMACKey(logger); err == nil {
			t.Error("expected error for invalid base64")
		}
	})

	t.Run("derived from secret", func(t *testing.T) {
		t.Setenv("GATE_MAC_KEY", "")
		t.Setenv("GATE_MAC_SECRET", "correct horse battery staple")
		first, err := loadMACKey(logger)
		if err != nil {
			t.Fatalf("loadMACKey() error = %v", err)
		}
		second, _ := loadMACKey(logger)
		if !bytes.Equal(first, second) {
			t.Error("derived keys differ between calls")
		}
	})

	t.Run("generated with warning", func(t *testing.T) {
		t.Setenv("GATE_MAC_KEY", "")
		t.Setenv("GATE_MAC_SECRET", "")
		var buf bytes.Buffer
		key, err := loadMACKey(slog.New(slog.NewTextHandler(&buf, nil)))
		if err != nil {
			t.Fatalf("loadMACKey() error = %v", err)
		}
		if len(key) != capability.KeySize {
			t.Errorf("len(key) = %d, want %d", len(key), capability.KeySize)
		}
		if !strings.Contains(buf.String(), "random MAC key") {
			t.Errorf("expected warning, got %q", buf.String())
		}
	})
}

func TestLoadConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	t.Setenv("GATE_MAC_SECRET", "replica secret")

	t.Run("resources file required", func(t *testing.T) {
		t.Setenv("GATE_RESOURCES_FILE", "")
		if _, err := loadConfig(logger); err == nil {
			t.Error("expected error without GATE_RESOURCES_FILE")
		}
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		t.Setenv("GATE_RESOURCES_FILE", "resources.json")
		t.Setenv("GATE_MAC_ALGORITHM", "md5")
		if _, err := loadConfig(logger); err == nil {
			t.Error("expected error for unknown algorithm")
		}
	})

	t.Run("values", func(t *testing.T) {
		t.Setenv("GATE_RESOURCES_FILE", "resources.json")
		t.Setenv("GATE_MAC_ALGORITHM", "blake2b-256")
		t.Setenv("PUBLIC_URL", "https://gate.example.com/")
		t.Setenv("RATE_WINDOW", "1m")
		t.Setenv("RATE_MAX", "5")
		t.Setenv("TRUST_PROXY", "true")
		t.Setenv("PROBE_CHECK", "false")
		t.Setenv("RATE_REDIS_ADDR", "localhost:6379")

		cfg, err := loadConfig(logger)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.gate.ServerURL != "https://gate.example.com" {
			t.Errorf("ServerURL = %q", cfg.gate.ServerURL)
		}
		if cfg.gate.Capability.Algorithm != capability.AlgorithmBLAKE2b256 {
			t.Errorf("Algorithm = %q", cfg.gate.Capability.Algorithm)
		}
		if cfg.gate.RateLimit.Window != time.Minute || cfg.gate.RateLimit.Limit != 5 {
			t.Errorf("RateLimit = %+v", cfg.gate.RateLimit)
		}
		if !cfg.gate.RateLimit.TrustProxy {
			t.Error("TrustProxy not set")
		}
		if !cfg.gate.Security.DisableProbeCheck {
			t.Error("DisableProbeCheck not set")
		}
		if !cfg.gate.Security.EnableAuditLogging {
			t.Error("audit logging should default to on")
		}
		if cfg.storeName() != "redis" {
			t.Errorf("storeName() = %q, want redis", cfg.storeName())
		}
	})
}
