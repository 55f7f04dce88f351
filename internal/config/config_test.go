// internal/config/config_test.go
package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.ListenPort != 5980 {
		t.Errorf("ListenPort should be 5980, got %d", cfg.Server.ListenPort)
	}
	if !cfg.Rooms.Autonomous {
		t.Error("rooms should be autonomous by default")
	}
	if cfg.Rooms.MaxSequentialTurns != 6 {
		t.Errorf("MaxSequentialTurns should be 6, got %d", cfg.Rooms.MaxSequentialTurns)
	}
	if cfg.Scheduler.ResponderTimeout != 120 {
		t.Errorf("ResponderTimeout should be 120, got %d", cfg.Scheduler.ResponderTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level should be 'info', got %s", cfg.Logging.Level)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Logging.Level = "debug"
	applyDefaults(cfg)

	if cfg.Server.ListenPort != 5980 {
		t.Errorf("unset port should default, got %d", cfg.Server.ListenPort)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("explicit level should survive defaults, got %s", cfg.Logging.Level)
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
}
