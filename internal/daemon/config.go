// Package daemon manages the MathQuest daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/mathquest/mathquest/internal/logging"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Store     StoreConfig     `toml:"store"`
	Redis     RedisConfig     `toml:"redis"`
	Engine    EngineConfig    `toml:"engine"`
	Sweep     SweepConfig     `toml:"sweep"`
	Logging   logging.Config  `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StoreConfig selects the attempt store backend.
type StoreConfig struct {
	Driver   string `toml:"driver"` // sqlite | postgres
	Path     string `toml:"path"`   // sqlite database directory
	DSN      string `toml:"dsn"`    // postgres connection string
	MaxConns int    `toml:"max_conns"`
}

// RedisConfig controls the attempt event consumer.
type RedisConfig struct {
	Enabled         bool   `toml:"enabled"`
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	AttemptsChannel string `toml:"attempts_channel"`
	ResultsChannel  string `toml:"results_channel"`
	Workers         int    `toml:"workers"`
}

// EngineConfig tunes history scans.
type EngineConfig struct {
	StreakOverfetch int `toml:"streak_overfetch"`
	StreakScanLimit int `toml:"streak_scan_limit"`
}

// SweepConfig controls scheduled re-evaluation.
type SweepConfig struct {
	Enabled  bool   `toml:"enabled"`
	Interval string `toml:"interval"`
	Lookback string `toml:"lookback"`
}

// TelemetryConfig controls observability endpoints.
type TelemetryConfig struct {
	Metrics bool `toml:"metrics"`
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultConfig returns a local single-node configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8420,
		},
		Store: StoreConfig{
			Driver:   DriverSQLite,
			Path:     mathquestHome(),
			MaxConns: 10,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			AttemptsChannel: "mathquest.attempts",
			ResultsChannel:  "mathquest.results",
			Workers:         4,
		},
		Engine: EngineConfig{
			StreakOverfetch: 3,
			StreakScanLimit: 200,
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Interval: "1h",
			Lookback: "48h",
		},
		Logging:   logging.DefaultConfig(),
		Telemetry: TelemetryConfig{Metrics: true},
	}
}

// ConfigPath returns the location of config.toml.
func ConfigPath() string {
	return filepath.Join(mathquestHome(), "config.toml")
}

// LoadConfig reads config from $MATHQUEST_HOME/config.toml, falling back to
// defaults, then applies environment overrides.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom reads config from path. A missing file yields defaults.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to $MATHQUEST_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
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

// applyEnv overlays MATHQUEST_* variables onto cfg.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("MATHQUEST_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("MATHQUEST_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("MATHQUEST_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("MATHQUEST_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MATHQUEST_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("MATHQUEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// mathquestHome returns the MathQuest data directory.
func mathquestHome() string {
	if env := os.Getenv("MATHQUEST_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mathquest")
}

// Home is exported for use by other packages.
func Home() string {
	return mathquestHome()
}
