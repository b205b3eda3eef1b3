package config

import "time"

// Config represents the complete deepdomain configuration.
type Config struct {
	Service ServiceConfig         `yaml:"service"`
	Runner  RunnerConfig          `yaml:"runner"`
	UI      UIConfig              `yaml:"ui"`
	API     APIConfig             `yaml:"api,omitempty"`
	History HistoryConfig         `yaml:"history,omitempty"`
	Modes   map[string]ModeConfig `yaml:"modes,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// RunnerConfig tunes external command execution.
type RunnerConfig struct {
	// MaxConcurrent caps how many external tools run at once.
	MaxConcurrent int64 `yaml:"max_concurrent"`
	// WallCap bounds a streamed command's wall-clock time when no
	// per-command timeout is given.
	WallCap time.Duration `yaml:"wall_cap"`
	// MaxMemoryWrite is the store's streaming-write threshold in bytes.
	MaxMemoryWrite int `yaml:"max_memory_write"`
}

// UIConfig tunes the TUI and update dispatcher.
type UIConfig struct {
	// OutputBufferLines bounds the live command output buffer.
	OutputBufferLines int `yaml:"output_buffer_lines"`
}

// APIConfig defines the optional status HTTP server.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// HistoryConfig defines the command journal database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // default: <output>/.deepdomain/history.db
}

// ModeConfig is one scan intensity profile. Quick keeps rates and coverage
// modest; deep trades time for full port ranges and nuclei.
type ModeConfig struct {
	MasscanRate      int    `yaml:"masscan_rate"`
	MasscanPorts     string `yaml:"masscan_ports"`
	NmapTiming       string `yaml:"nmap_timing"`
	MaxSubdomains    int    `yaml:"max_subdomains"`
	MaxHostsDetailed int    `yaml:"max_hosts_detailed"`
	HTTPXThreads     int    `yaml:"httpx_threads"`
	RunNuclei        bool   `yaml:"run_nuclei"`
	DNSXConcurrency  int    `yaml:"dnsx_concurrency"`
	GobusterThreads  int    `yaml:"gobuster_threads"`
	NiktoMaxTime     int    `yaml:"nikto_maxtime"`
}
