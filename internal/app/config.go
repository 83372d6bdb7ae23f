package app

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the client's runtime configuration. Precedence, lowest to
// highest: DefaultConfig, YAML file, environment.
type Config struct {
	StoreURL          string        `env:"QUANTAVERSE_STORE_URL" yaml:"storeURL"`
	TicksPerSecond    int           `env:"QUANTAVERSE_TICK_RATE" yaml:"ticksPerSecond"`
	PartitionRadius   float64       `env:"QUANTAVERSE_PARTITION_RADIUS" yaml:"partitionRadius"`
	TeleportThreshold float64       `env:"QUANTAVERSE_TELEPORT_THRESHOLD" yaml:"teleportThreshold"`
	PreferencePath    string        `env:"QUANTAVERSE_PREFS_PATH" yaml:"preferencePath"`
	LogSinks          []string      `env:"QUANTAVERSE_LOG_SINKS" envSeparator:"," yaml:"logSinks"`
	LogJSONPath       string        `env:"QUANTAVERSE_LOG_JSON_PATH" yaml:"logJSONPath"`
	LogSeverity       string        `env:"QUANTAVERSE_LOG_SEVERITY" yaml:"logSeverity"`
	WriteWait         time.Duration `env:"QUANTAVERSE_WRITE_WAIT" yaml:"writeWait"`
}

// DefaultConfig returns the built-in configuration. Defaults live here and
// not in envDefault tags: env.Parse applies envDefault whenever the variable
// is unset, which would overwrite values a YAML file already supplied.
func DefaultConfig() Config {
	return Config{
		StoreURL:          "ws://127.0.0.1:3000/subscribe",
		TicksPerSecond:    15,
		PartitionRadius:   120,
		TeleportThreshold: 8,
		PreferencePath:    "quantaverse.db",
		LogSinks:          []string{"console"},
		LogSeverity:       "info",
		WriteWait:         10 * time.Second,
	}
}

// LoadConfig builds the runtime configuration. When path names a YAML file
// its values overlay the defaults, and set environment variables overlay
// both.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env config: %w", err)
	}
	return cfg, nil
}
