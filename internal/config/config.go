// internal/config/config.go
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		ListenPort int `yaml:"listen_port"`
	} `yaml:"server"`
	Storage struct {
		DBPath    string `yaml:"db_path,omitempty"`
		ExportDir string `yaml:"export_dir,omitempty"`
	} `yaml:"storage"`
	Rooms struct {
		Autonomous         bool `yaml:"autonomous"`
		RoundRobin         bool `yaml:"round_robin"`
		MaxSequentialTurns int  `yaml:"max_sequential_turns"`
	} `yaml:"rooms"`
	Scheduler struct {
		ResponderTimeout int `yaml:"responder_timeout"` // seconds, 0 disables
	} `yaml:"scheduler"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func Load() (*Config, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		// Return defaults if no config file
		return defaultConfig(), nil
	}

	// Expand environment variables in config
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for unset values
	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.ListenPort = 5980
	cfg.Rooms.Autonomous = true
	cfg.Rooms.RoundRobin = true
	cfg.Rooms.MaxSequentialTurns = 6
	cfg.Scheduler.ResponderTimeout = 120
	cfg.Logging.Level = "info"
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Rooms.MaxSequentialTurns == 0 {
		cfg.Rooms.MaxSequentialTurns = 6
	}
	if cfg.Server.ListenPort == 0 {
		cfg.Server.ListenPort = 5980
	}
	if cfg.Scheduler.ResponderTimeout == 0 {
		cfg.Scheduler.ResponderTimeout = 120
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func ConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil || configDir == "" {
		configDir = os.ExpandEnv("$HOME/.config")
	}
	return filepath.Join(configDir, "parley", "config.yaml")
}
