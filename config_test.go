package gfxcore

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = "noop"
	cfg.ClearColor = [4]float64{0.1, 0.2, 0.3, 1}
	cfg.ShaderDir = "assets/shaders"
	cfg.Passes = []PassConfig{
		{ID: 0, Name: "scene", Clear: []string{"color", "depth"}, Cull: "back", Blend: "replace", Polygon: "fill", DepthTest: true},
		{ID: 1, Name: "ui", Clear: []string{"stencil"}, Viewport: [4]float32{0, 0, 640, 360}, Cull: "none", Blend: "alpha", Polygon: "fill"},
	}
	return cfg
}

func TestConfigRoundTrip(t *testing.T) {
	for _, format := range []string{"yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			want := sampleConfig()
			data, err := EncodeConfig(want, format)
			require.NoError(t, err)

			got, err := DecodeConfig(data, format)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadConfigByExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "core.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("backend: noop\nwidth: 320\nheight: 200\n"), 0o600))
	cfg, err := LoadConfig(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "noop", cfg.Backend)
	assert.Equal(t, uint32(320), cfg.Width)
	assert.Equal(t, 64, cfg.PipelineCacheSize, "unset fields keep defaults")

	tomlPath := filepath.Join(dir, "core.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("width = 640\nheight = 480\nlog_level = \"debug\"\n"), 0o600))
	cfg, err = LoadConfig(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, uint32(480), cfg.Height)
	assert.Equal(t, "debug", cfg.LogLevel)

	iniPath := filepath.Join(dir, "core.ini")
	require.NoError(t, os.WriteFile(iniPath, []byte("width=1"), 0o600))
	_, err = LoadConfig(iniPath)
	assert.ErrorIs(t, err, ErrUnknownConfigFormat)
}

func TestDecodeConfigRejectsUnknownFields(t *testing.T) {
	_, err := DecodeConfig([]byte("widht: 10\n"), "yaml")
	assert.Error(t, err)

	_, err = DecodeConfig([]byte("widht = 10\n"), "toml")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero size", func(c *Config) { c.Width = 0 }},
		{"negative cache", func(c *Config) { c.PipelineCacheSize = -1 }},
		{"tiny ring", func(c *Config) { c.UniformRingSize = 16 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"duplicate pass", func(c *Config) { c.Passes = []PassConfig{{ID: 2}, {ID: 2}} }},
		{"bad clear", func(c *Config) { c.Passes = []PassConfig{{ID: 0, Clear: []string{"accum"}}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Passes = []PassConfig{{ID: 0, Clear: []string{"all"}}, {ID: 1, Clear: []string{" Depth "}}}
	assert.NoError(t, cfg.Validate())
}

func TestParseLogLevel(t *testing.T) {
	l, err := ParseLogLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, l)

	l, err = ParseLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)
}
