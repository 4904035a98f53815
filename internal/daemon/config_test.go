package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 7430 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 7430)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Market.Decimals != 9 {
		t.Errorf("Market.Decimals = %d, want 9", cfg.Market.Decimals)
	}
	if cfg.Schedule.PeriodDuration != 86400 {
		t.Errorf("Schedule.PeriodDuration = %d, want 86400", cfg.Schedule.PeriodDuration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error: %v", err)
	}
}

func TestDistriHome_Env(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DISTRI_HOME", dir)
	if got := DistriHome(); got != dir {
		t.Errorf("DistriHome() = %q, want %q", got, dir)
	}
	if got := DefaultConfig().Store.Path(); got != filepath.Join(dir, "data") {
		t.Errorf("Store.Path() = %q, want %q", got, filepath.Join(dir, "data"))
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Setenv("DISTRI_HOME", t.TempDir())
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Errorf("API.Port = %d, want default", cfg.API.Port)
	}
}

func TestLoadConfigFile_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[api]
port = 9000
max_clock_skew = "30s"

[store]
backend = "badger"

[market]
overflow = "reject"

[schedule]
genesis_pool = 500
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.ClockSkew() != 30*time.Second {
		t.Errorf("ClockSkew() = %s, want 30s", cfg.ClockSkew())
	}
	if cfg.Store.Backend != "badger" {
		t.Errorf("Store.Backend = %q, want badger", cfg.Store.Backend)
	}
	if cfg.Schedule.GenesisPool != 500 {
		t.Errorf("Schedule.GenesisPool = %d, want 500", cfg.Schedule.GenesisPool)
	}
	// Unset keys keep their defaults.
	if cfg.Schedule.DecayNumerator != 9737 {
		t.Errorf("Schedule.DecayNumerator = %d, want 9737", cfg.Schedule.DecayNumerator)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want default", cfg.API.Host)
	}
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[api\nport = 1"},
		{"backend", "[store]\nbackend = \"mysql\""},
		{"overflow", "[market]\noverflow = \"wrap\""},
		{"admin key", "[market]\nadmins = [\"not base58!\"]"},
		{"port", "[api]\nport = 70000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfigFile(path); err == nil {
				t.Error("LoadConfigFile() should reject the file")
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv("DISTRI_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.API.Port = 8123
	cfg.Events.NATSURL = "nats://127.0.0.1:4222"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.API.Port != 8123 || got.Events.NATSURL != cfg.Events.NATSURL {
		t.Errorf("LoadConfig() = %+v, want saved values", got)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"5m", 5 * time.Minute},
		{"90s", 90 * time.Second},
		{"", time.Minute},
		{"soon", time.Minute},
		{"-1s", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseDuration(tt.input, time.Minute); got != tt.want {
				t.Errorf("parseDuration(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
