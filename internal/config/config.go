// Package config loads and validates deepdomain configuration from YAML,
// layered over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults returns the built-in configuration, including the quick and deep
// scan mode profiles.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "deepdomain",
			LogLevel: "INFO",
		},
		Runner: RunnerConfig{
			MaxConcurrent:  8,
			WallCap:        300 * time.Second,
			MaxMemoryWrite: 1 << 20,
		},
		UI: UIConfig{
			OutputBufferLines: 1000,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8787",
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Modes: map[string]ModeConfig{
			"quick": {
				MasscanRate:      250,
				MasscanPorts:     "--top-ports 1000",
				NmapTiming:       "-T3",
				MaxSubdomains:    500,
				MaxHostsDetailed: 200,
				HTTPXThreads:     4,
				RunNuclei:        false,
				DNSXConcurrency:  20,
				GobusterThreads:  10,
				NiktoMaxTime:     300,
			},
			"deep": {
				MasscanRate:      500,
				MasscanPorts:     "-p1-65535",
				NmapTiming:       "-T4",
				MaxSubdomains:    2000,
				MaxHostsDetailed: 1000,
				HTTPXThreads:     8,
				RunNuclei:        true,
				DNSXConcurrency:  40,
				GobusterThreads:  20,
				NiktoMaxTime:     600,
			},
		},
	}
}

// Load reads configuration from path, layered over Defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", path, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", absPath, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Mode returns the named scan profile.
func (c *Config) Mode(name string) (ModeConfig, error) {
	m, ok := c.Modes[name]
	if !ok {
		return ModeConfig{}, fmt.Errorf("unknown scan mode %q", name)
	}
	return m, nil
}

func validate(cfg *Config) error {
	if cfg.Runner.MaxConcurrent <= 0 {
		return fmt.Errorf("runner.max_concurrent must be positive, got %d", cfg.Runner.MaxConcurrent)
	}
	if cfg.Runner.WallCap <= 0 {
		return fmt.Errorf("runner.wall_cap must be positive, got %s", cfg.Runner.WallCap)
	}
	if cfg.UI.OutputBufferLines <= 0 {
		return fmt.Errorf("ui.output_buffer_lines must be positive, got %d", cfg.UI.OutputBufferLines)
	}
	if cfg.API.Enabled && cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is required when api.enabled is true")
	}
	if len(cfg.Modes) == 0 {
		return fmt.Errorf("at least one scan mode must be defined")
	}
	for name, m := range cfg.Modes {
		if m.MaxSubdomains <= 0 {
			return fmt.Errorf("mode %q: max_subdomains must be positive", name)
		}
		if m.HTTPXThreads <= 0 {
			return fmt.Errorf("mode %q: httpx_threads must be positive", name)
		}
	}
	return nil
}
