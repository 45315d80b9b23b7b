package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	nativecommon "stokvel/native/common"
)

type Config struct {
	RPCAddress         string   `toml:"RPCAddress"`
	DataDir            string   `toml:"DataDir"`
	NetworkName        string   `toml:"NetworkName"`
	LogFile            string   `toml:"LogFile"`
	YieldServiceURL    string   `toml:"YieldServiceURL"`
	YieldClaimTimeout  uint     `toml:"YieldClaimTimeoutSeconds"`
	PausedModules      []string `toml:"PausedModules"`
	RateLimitPerMinute float64  `toml:"RateLimitPerMinute"`
	RateLimitBurst     int      `toml:"RateLimitBurst"`
}

const (
	defaultRPCAddress  = ":8645"
	defaultDataDir     = "./stokvel-data"
	defaultNetworkName = "stokvel-local"
	defaultRateLimit   = 120.0
	defaultRateBurst   = 30
)

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = defaultNetworkName
	}
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = defaultRateLimit
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = defaultRateBurst
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("config: RateLimitPerMinute must be non-negative")
	}
	if c.RateLimitBurst < 0 {
		return fmt.Errorf("config: RateLimitBurst must be non-negative")
	}
	return nil
}

// Pauses converts the configured pause list into the view consumed by the
// native engines.
func (c *Config) Pauses() nativecommon.StaticPauses {
	pauses := make(nativecommon.StaticPauses, len(c.PausedModules))
	for _, module := range c.PausedModules {
		module = strings.TrimSpace(module)
		if module == "" {
			continue
		}
		pauses[module] = true
	}
	return pauses
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	return toml.NewEncoder(f).Encode(cfg)
}
