package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != defaultRPCAddress {
		t.Fatalf("expected default rpc address, got %q", cfg.RPCAddress)
	}
	if cfg.DataDir != defaultDataDir {
		t.Fatalf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.RateLimitPerMinute != defaultRateLimit || cfg.RateLimitBurst != defaultRateBurst {
		t.Fatalf("rate limit defaults not applied: %v/%v", cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file should have been written: %v", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
RPCAddress = ":9999"
DataDir = "/tmp/stokvel-test"
NetworkName = "stokvel-test"
YieldServiceURL = "http://localhost:7070/claims"
YieldClaimTimeoutSeconds = 5
PausedModules = ["rosca"]
RateLimitPerMinute = 10.0
RateLimitBurst = 2
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9999" {
		t.Fatalf("rpc address not loaded: %q", cfg.RPCAddress)
	}
	if cfg.YieldServiceURL != "http://localhost:7070/claims" || cfg.YieldClaimTimeout != 5 {
		t.Fatalf("yield settings not loaded: %q/%d", cfg.YieldServiceURL, cfg.YieldClaimTimeout)
	}
	if cfg.RateLimitPerMinute != 10.0 || cfg.RateLimitBurst != 2 {
		t.Fatalf("rate limit not loaded: %v/%v", cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	}

	pauses := cfg.Pauses()
	if !pauses.IsPaused("rosca") {
		t.Fatalf("rosca should be paused")
	}
	if pauses.IsPaused("reputation") {
		t.Fatalf("reputation should not be paused")
	}
}

func TestValidateRejectsNegativeRateLimit(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.RateLimitPerMinute = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("negative rate limit should be rejected")
	}
}

func TestPausesIgnoresBlankEntries(t *testing.T) {
	cfg := &Config{PausedModules: []string{" ", "", "  rosca  "}}
	pauses := cfg.Pauses()
	if len(pauses) != 1 || !pauses.IsPaused("rosca") {
		t.Fatalf("unexpected pause view: %v", pauses)
	}
}
