// Package config loads nritya's runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the process-wide settings of the nritya daemon.
type Config struct {
	// DataDir holds the gesture catalog database. Defaults to ~/.nritya.
	DataDir string `env:"NRITYA_DATA_DIR"`
	// Addr is the listen address of the HTTP API.
	Addr string `env:"NRITYA_ADDR" envDefault:":8080"`
	// CameraID selects the depth sensor device.
	CameraID int `env:"NRITYA_CAMERA_ID" envDefault:"0"`
	// PluginDir holds action plugins. Defaults to <DataDir>/plugins.
	PluginDir string `env:"NRITYA_PLUGIN_DIR"`
	// MarginMM is the dead band of the directional relationships.
	MarginMM float64 `env:"NRITYA_MARGIN_MM" envDefault:"10"`
	// DropFrames is how many frames a player may go missing before leaving.
	DropFrames int `env:"NRITYA_DROP_FRAMES" envDefault:"0"`
	// TrackerCmd is the skeleton tracker command line; empty searches for
	// scripts/skeleton_service.py.
	TrackerCmd []string `env:"NRITYA_TRACKER_CMD" envSeparator:" "`
	// QueueSize bounds the frames waiting for the engine.
	QueueSize int `env:"NRITYA_QUEUE_SIZE" envDefault:"4"`
	// PluginTimeout bounds a single plugin action.
	PluginTimeout time.Duration `env:"NRITYA_PLUGIN_TIMEOUT" envDefault:"5s"`
	// Tray shows the system tray menu.
	Tray bool `env:"NRITYA_TRAY" envDefault:"false"`
}

// Load parses the environment and fills in directory defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".nritya")
	}
	if cfg.PluginDir == "" {
		cfg.PluginDir = filepath.Join(cfg.DataDir, "plugins")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges the environment parser cannot express.
func (c Config) Validate() error {
	if c.MarginMM < 0 {
		return fmt.Errorf("NRITYA_MARGIN_MM must not be negative, got %v", c.MarginMM)
	}
	if c.DropFrames < 0 {
		return fmt.Errorf("NRITYA_DROP_FRAMES must not be negative, got %d", c.DropFrames)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("NRITYA_QUEUE_SIZE must be positive, got %d", c.QueueSize)
	}
	if c.PluginTimeout <= 0 {
		return fmt.Errorf("NRITYA_PLUGIN_TIMEOUT must be positive, got %v", c.PluginTimeout)
	}
	return nil
}

// DatabasePath returns the path of the gesture catalog.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "nritya.db")
}
