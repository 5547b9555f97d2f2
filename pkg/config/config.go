// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the bussniff capture pipeline.
type Config struct {
	LogLevel string        `yaml:"log_level" env:"BUSSNIFF_LOG_LEVEL"`
	Capture  CaptureConfig `yaml:"capture"`
	Console  ConsoleConfig `yaml:"console"`
	Health   HealthConfig  `yaml:"health"`
}

// CaptureConfig configures the ring buffer and the two file sinks. All of
// these are fixed at session start; a running session ignores changes.
type CaptureConfig struct {
	BinaryPath     string        `yaml:"binary_path" env:"BUSSNIFF_BINARY_PATH"`
	TextPath       string        `yaml:"text_path" env:"BUSSNIFF_TEXT_PATH"`
	RingCapacity   int           `yaml:"ring_capacity"`   // power of two; capacity-1 frames in flight
	PollInterval   time.Duration `yaml:"poll_interval"`   // writer sleep between drain passes
	DrainGrace     time.Duration `yaml:"drain_grace"`     // wait before the writer's final drain at stop
	StatusInterval time.Duration `yaml:"status_interval"` // periodic throughput report (0 = off)
}

// ConsoleConfig configures the sampled console echo. Both fields are
// hot-reloadable on a running session.
type ConsoleConfig struct {
	Echo  bool `yaml:"echo"`  // env: SNIFFER_PRINT
	Every int  `yaml:"every"` // env: SNIFFER_PRINT_EVERY; 1 = every frame
}

// HealthConfig configures the health HTTP server.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port" env:"BUSSNIFF_HEALTH_PORT"` // e.g. ":8687"
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults. The sink
// paths and ring sizing match the sniffer IP's reference values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Capture: CaptureConfig{
			BinaryPath:     "sniffer_frames.bin",
			TextPath:       "sniffer_frames.csv",
			RingCapacity:   1 << 16,
			PollInterval:   time.Millisecond,
			DrainGrace:     5 * time.Millisecond,
			StatusInterval: 0,
		},
		Console: ConsoleConfig{
			Echo:  false,
			Every: 1,
		},
		Health: HealthConfig{
			Enabled: false,
			Port:    ":8687",
		},
	}
}

// ApplyEnvOverrides applies environment variables on top of YAML values.
// SNIFFER_PRINT and SNIFFER_PRINT_EVERY keep the knobs the simulator
// testbenches already export.
func (c *Config) ApplyEnvOverrides() {
	strOverrides := map[string]*string{
		"BUSSNIFF_LOG_LEVEL":   &c.LogLevel,
		"BUSSNIFF_BINARY_PATH": &c.Capture.BinaryPath,
		"BUSSNIFF_TEXT_PATH":   &c.Capture.TextPath,
		"BUSSNIFF_HEALTH_PORT": &c.Health.Port,
	}
	for key, target := range strOverrides {
		if val := os.Getenv(key); val != "" {
			*target = val
		}
	}

	if val := os.Getenv("SNIFFER_PRINT"); val != "" {
		c.Console.Echo = parseBool(val)
	}
	if val := os.Getenv("SNIFFER_PRINT_EVERY"); val != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && n > 0 {
			c.Console.Every = n
		}
	}
	if val := os.Getenv("BUSSNIFF_HEALTH_ENABLED"); val != "" {
		c.Health.Enabled = parseBool(val)
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	rc := c.Capture.RingCapacity
	if rc < 2 || rc&(rc-1) != 0 {
		return fmt.Errorf("capture.ring_capacity must be a power of two >= 2")
	}
	if c.Capture.BinaryPath == "" {
		return fmt.Errorf("capture.binary_path is required")
	}
	if c.Capture.TextPath == "" {
		return fmt.Errorf("capture.text_path is required")
	}
	if c.Capture.PollInterval <= 0 {
		return fmt.Errorf("capture.poll_interval must be positive")
	}
	if c.Capture.DrainGrace < 0 {
		return fmt.Errorf("capture.drain_grace must not be negative")
	}
	if c.Console.Every < 1 {
		return fmt.Errorf("console.every must be a positive integer")
	}
	if c.Health.Enabled && c.Health.Port == "" {
		return fmt.Errorf("health.port is required when health is enabled")
	}
	return nil
}
