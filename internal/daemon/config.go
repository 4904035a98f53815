// Package daemon manages the Distri node lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/distri-network/distri/internal/app/schedule"
	"github.com/distri-network/distri/internal/domain"
)

// Config holds all node configuration.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	API       APIConfig       `toml:"api"`
	Store     StoreConfig     `toml:"store"`
	Market    MarketConfig    `toml:"market"`
	Schedule  schedule.Config `toml:"schedule"`
	Events    EventsConfig    `toml:"events"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
}

// NodeConfig identifies this node.
type NodeConfig struct {
	Name string `toml:"name"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host         string  `toml:"host"`
	Port         int     `toml:"port"`
	RateLimit    float64 `toml:"rate_limit"` // requests/s per client, negative disables
	RateBurst    int     `toml:"rate_burst"`
	MaxClockSkew string  `toml:"max_clock_skew"`
}

// StoreConfig selects the keyed store backend.
type StoreConfig struct {
	Backend string `toml:"backend"` // "sqlite" or "badger"
	Dir     string `toml:"dir"`
}

// Path returns the store directory, defaulting to $DISTRI_HOME/data.
func (c StoreConfig) Path() string {
	if c.Dir == "" {
		return filepath.Join(distriHome(), "data")
	}
	return c.Dir
}

// MarketConfig describes the token and the marketplace policy.
type MarketConfig struct {
	// Mint is the base58 token address. Empty derives one from the node key.
	Mint     string `toml:"mint"`
	Decimals uint8  `toml:"decimals"`
	// MintAuthority may issue supply. Empty means the node key.
	MintAuthority string   `toml:"mint_authority"`
	Admins        []string `toml:"admins"`
	Overflow      string   `toml:"overflow"` // "saturate" or "reject"
}

// EventsConfig controls event publication.
type EventsConfig struct {
	NATSURL string `toml:"nats_url"` // empty disables NATS
}

// TelemetryConfig controls metrics and tracing.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
	Tracing    bool `toml:"tracing"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// DefaultConfig returns the default node configuration.
func DefaultConfig() Config {
	return Config{
		Node: NodeConfig{
			Name: "distri-node",
		},
		API: APIConfig{
			Host:         "127.0.0.1",
			Port:         7430,
			RateLimit:    20,
			RateBurst:    40,
			MaxClockSkew: "5m",
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Dir:     filepath.Join(distriHome(), "data"),
		},
		Market: MarketConfig{
			Decimals: 9,
			Overflow: string(domain.OverflowSaturate),
		},
		Schedule: schedule.DefaultConfig(),
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the fields the node cannot start without.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "badger":
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port: %d out of range", c.API.Port)
	}
	if _, err := domain.ParseOverflowPolicy(c.Market.Overflow); err != nil {
		return fmt.Errorf("market.overflow: %w", err)
	}
	if c.Market.Mint != "" {
		if _, err := domain.ParsePubkey(c.Market.Mint); err != nil {
			return fmt.Errorf("market.mint: %w", err)
		}
	}
	if _, err := c.AdminKeys(); err != nil {
		return err
	}
	if c.Schedule.PeriodDuration <= 0 {
		return fmt.Errorf("schedule.period_duration must be positive")
	}
	return nil
}

// AdminKeys parses the configured admin pubkeys.
func (c Config) AdminKeys() ([]domain.Pubkey, error) {
	keys := make([]domain.Pubkey, 0, len(c.Market.Admins))
	for _, s := range c.Market.Admins {
		pk, err := domain.ParsePubkey(s)
		if err != nil {
			return nil, fmt.Errorf("market.admins: %w", err)
		}
		keys = append(keys, pk)
	}
	return keys, nil
}

// ClockSkew returns api.max_clock_skew as a duration.
func (c Config) ClockSkew() time.Duration {
	return parseDuration(c.API.MaxClockSkew, 5*time.Minute)
}

// LoadConfig reads config from $DISTRI_HOME/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFile(filepath.Join(distriHome(), "config.toml"))
}

// LoadConfigFile decodes path over DefaultConfig. A missing file yields
// the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $DISTRI_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(distriHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// distriHome returns the Distri data directory.
func distriHome() string {
	if env := os.Getenv("DISTRI_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".distri")
}

// DistriHome is exported for use by other packages.
func DistriHome() string {
	return distriHome()
}

// parseDuration parses s, returning fallback when s is empty or invalid.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
