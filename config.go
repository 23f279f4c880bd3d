package gfxcore

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config errors.
var (
	// ErrUnknownConfigFormat is returned for config files that are neither
	// YAML nor TOML.
	ErrUnknownConfigFormat = errors.New("gfxcore: unknown config format")

	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("gfxcore: invalid config")
)

// Config describes how a render core is assembled.
type Config struct {
	// Backend names the HAL backend to open. Empty selects the best
	// registered backend.
	Backend string `yaml:"backend" toml:"backend"`

	// Width and Height size the backbuffer when no window is attached.
	Width  uint32 `yaml:"width" toml:"width"`
	Height uint32 `yaml:"height" toml:"height"`

	// ClearColor is the RGBA backbuffer clear color.
	ClearColor [4]float64 `yaml:"clear_color" toml:"clear_color"`

	// Passes lists the pipeline passes in execution order. Empty means
	// a single default pass with id 0.
	Passes []PassConfig `yaml:"passes" toml:"passes"`

	// ShaderDir and TextureDir locate assets for the IO collaborators.
	ShaderDir  string `yaml:"shader_dir" toml:"shader_dir"`
	TextureDir string `yaml:"texture_dir" toml:"texture_dir"`

	// WatchShaders enables shader hot reload from ShaderDir.
	WatchShaders bool `yaml:"watch_shaders" toml:"watch_shaders"`

	// PipelineCacheSize bounds the number of live render pipelines.
	PipelineCacheSize int `yaml:"pipeline_cache_size" toml:"pipeline_cache_size"`

	// UniformRingSize is the per-frame uniform arena in bytes.
	UniformRingSize uint64 `yaml:"uniform_ring_size" toml:"uniform_ring_size"`

	// Trace logs every HAL call at debug level.
	Trace bool `yaml:"trace" toml:"trace"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" toml:"log_level"`
}

// PassConfig configures one pipeline pass.
type PassConfig struct {
	ID   uint32 `yaml:"id" toml:"id"`
	Name string `yaml:"name" toml:"name"`

	// Clear lists the buffers cleared at pass start: color, depth, stencil
	// or all.
	Clear []string `yaml:"clear" toml:"clear"`

	// Viewport is x, y, width, height. All zero means the full backbuffer.
	Viewport [4]float32 `yaml:"viewport" toml:"viewport"`

	// Cull is none, front or back.
	Cull string `yaml:"cull" toml:"cull"`

	// Blend is replace, alpha or premultiplied.
	Blend string `yaml:"blend" toml:"blend"`

	// Polygon is fill, line or point.
	Polygon string `yaml:"polygon" toml:"polygon"`

	// DepthTest enables the less-equal depth test with depth writes.
	DepthTest bool `yaml:"depth_test" toml:"depth_test"`
}

// DefaultConfig returns a config for a 1280x720 headless core.
func DefaultConfig() Config {
	return Config{
		Width:             1280,
		Height:            720,
		ClearColor:        [4]float64{0, 0, 0, 1},
		PipelineCacheSize: 64,
		UniformRingSize:   1 << 20,
		LogLevel:          "info",
	}
}

// Validate checks the config for values the core cannot run with.
func (c *Config) Validate() error {
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("%w: backbuffer size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.PipelineCacheSize < 0 {
		return fmt.Errorf("%w: negative pipeline cache size", ErrInvalidConfig)
	}
	if c.UniformRingSize != 0 && c.UniformRingSize < 256 {
		return fmt.Errorf("%w: uniform ring below 256 bytes", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	seen := make(map[uint32]bool, len(c.Passes))
	for _, p := range c.Passes {
		if seen[p.ID] {
			return fmt.Errorf("%w: duplicate pass id %d", ErrInvalidConfig, p.ID)
		}
		seen[p.ID] = true
		for _, b := range p.Clear {
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "color", "depth", "stencil", "all":
			default:
				return fmt.Errorf("%w: pass %d: unknown clear buffer %q", ErrInvalidConfig, p.ID, b)
			}
		}
	}
	return nil
}

// ParseLogLevel maps a config level name to a slog level. Empty is info.
func ParseLogLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file on top of
// DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return Config{}, fmt.Errorf("gfxcore: read config: %w", err)
	}
	cfg, err := DecodeConfig(data, formatOf(path))
	if err != nil {
		return Config{}, fmt.Errorf("gfxcore: %s: %w", path, err)
	}
	return cfg, nil
}

// DecodeConfig decodes data in the given format ("yaml" or "toml").
func DecodeConfig(data []byte, format string) (Config, error) {
	cfg := DefaultConfig()
	switch format {
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode yaml: %w", err)
		}
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownConfigFormat, format)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EncodeConfig serializes cfg in the given format ("yaml" or "toml").
func EncodeConfig(cfg Config, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(cfg)
	case "toml":
		return toml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownConfigFormat, format)
	}
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return strings.TrimPrefix(filepath.Ext(path), ".")
	}
}
