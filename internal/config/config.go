package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pollevbot/backend/internal/pollev"
)

type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Bot      BotConfig     `yaml:"bot"`
	PollEv   pollev.Config `yaml:"pollev"`
	LogLevel string        `yaml:"log_level"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	StreamInterval time.Duration `yaml:"stream_interval"` // ws log flush cadence
}

// BotConfig holds defaults applied to session configs whose corresponding
// fields are unset in a start request.
type BotConfig struct {
	Lifetime             time.Duration `yaml:"lifetime"`
	ClosedWait           time.Duration `yaml:"closed_wait"`
	OpenWait             time.Duration `yaml:"open_wait"`
	StopGrace            time.Duration `yaml:"stop_grace"`
	MaxTransientFailures int           `yaml:"max_transient_failures"`
	BackoffCap           time.Duration `yaml:"backoff_cap"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			StreamInterval: time.Second,
		},
		Bot: BotConfig{
			Lifetime:             4800 * time.Second,
			ClosedWait:           5 * time.Second,
			OpenWait:             2 * time.Second,
			StopGrace:            5 * time.Second,
			MaxTransientFailures: 5,
			BackoffCap:           time.Minute,
		},
		LogLevel: "info",
	}
}

// Load reads the config file at path, applying defaults for anything the
// file omits. A missing file is not an error: defaults are returned so the
// server runs without any config on disk.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
