package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, int64(8), cfg.Runner.MaxConcurrent)
	assert.Equal(t, 300*time.Second, cfg.Runner.WallCap)
	assert.Equal(t, 1000, cfg.UI.OutputBufferLines)
	assert.False(t, cfg.API.Enabled)

	quick, err := cfg.Mode("quick")
	require.NoError(t, err)
	assert.False(t, quick.RunNuclei)
	assert.Equal(t, 500, quick.MaxSubdomains)

	deep, err := cfg.Mode("deep")
	require.NoError(t, err)
	assert.True(t, deep.RunNuclei)
	assert.Equal(t, "-p1-65535", deep.MasscanPorts)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Runner.MaxConcurrent, cfg.Runner.MaxConcurrent)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
service:
  log_level: DEBUG
runner:
  max_concurrent: 4
  wall_cap: 120s
api:
  enabled: true
  listen: "127.0.0.1:9000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Service.LogLevel)
	assert.Equal(t, int64(4), cfg.Runner.MaxConcurrent)
	assert.Equal(t, 120*time.Second, cfg.Runner.WallCap)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, "127.0.0.1:9000", cfg.API.Listen)

	// Untouched sections keep their defaults.
	assert.Equal(t, 1000, cfg.UI.OutputBufferLines)
	_, err = cfg.Mode("deep")
	assert.NoError(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "zero concurrency",
			content: "runner:\n  max_concurrent: 0\n  wall_cap: 10s\n",
			wantErr: "max_concurrent",
		},
		{
			name:    "api without listen",
			content: "api:\n  enabled: true\n  listen: \"\"\n",
			wantErr: "api.listen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMode_Unknown(t *testing.T) {
	_, err := Defaults().Mode("turbo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "turbo")
}
