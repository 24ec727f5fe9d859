package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Discord       DiscordConfig       `yaml:"discord"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Engine        EngineConfig        `yaml:"engine"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DiscordConfig holds Discord gateway configuration.
type DiscordConfig struct {
	Token string `yaml:"token"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// EngineConfig tunes the role assignment engine.
type EngineConfig struct {
	// FlushInterval paces the store's write-behind loop.
	FlushInterval time.Duration `yaml:"flush_interval"`
	// ReactionPace spaces reaction replays during rebuilds.
	ReactionPace time.Duration `yaml:"reaction_pace"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	MetricsAddress string `yaml:"metrics_address"`
	Environment    string `yaml:"environment"`
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// --- OVERRIDE WITH ENV VARS IF PRESENT ---
	applyEnvOverrides(&cfg)
	cfg.applyDefaults()

	if cfg.Discord.Token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	return &cfg, nil
}

// loadConfigFromEnv builds the configuration purely from environment
// variables, for container deployments without a mounted config file.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config
	applyEnvOverrides(&cfg)
	cfg.applyDefaults()

	if cfg.Discord.Token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required when no config file is present")
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when no config file is present")
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.FlushInterval = d
		}
	}
	if v := os.Getenv("REACTION_PACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.ReactionPace = d
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Engine.FlushInterval <= 0 {
		c.Engine.FlushInterval = 5 * time.Minute
	}
	if c.Engine.ReactionPace <= 0 {
		c.Engine.ReactionPace = 300 * time.Millisecond
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = "development"
	}
	if c.Observability.MetricsAddress == "" {
		c.Observability.MetricsAddress = ":9090"
	}
}
