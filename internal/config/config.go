// Package config loads shaderpg settings from flags, environment
// variables and an optional YAML file through viper.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// SHADERPG_RENDER_BACKEND=noop.
const EnvPrefix = "SHADERPG"

// Config holds all shaderpg settings.
type Config struct {
	Shader  ShaderConfig  `mapstructure:"shader"`
	Render  RenderConfig  `mapstructure:"render"`
	Update  UpdateConfig  `mapstructure:"update"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ShaderConfig controls where the fragment shader lives and how changes
// are noticed.
type ShaderConfig struct {
	// Path is the WGSL fragment shader file. Created with the bundled
	// default if missing.
	Path string `mapstructure:"path"`
	// Notify adds an fsnotify watcher on top of mtime polling so edits
	// are picked up before the next poll.
	Notify bool `mapstructure:"notify"`
}

// RenderConfig controls the GPU backend and frame loop.
type RenderConfig struct {
	// Backend is one of "auto", "vulkan" or "noop".
	Backend string `mapstructure:"backend"`
	// FramesInFlight is both the number of frame slots and the number of
	// frames a retired pipeline must age before it is destroyed.
	FramesInFlight int `mapstructure:"frames_in_flight"`
	// FrameRate is the target frames per second.
	FrameRate float64 `mapstructure:"frame_rate"`
	Width     int     `mapstructure:"width"`
	Height    int     `mapstructure:"height"`
	// Snapshot, if set, is a PNG path written with the last frame on exit.
	Snapshot string `mapstructure:"snapshot"`
}

// UpdateConfig controls the change-detection loop.
type UpdateConfig struct {
	// Rate is how many times per second the shader file is polled.
	Rate float64 `mapstructure:"rate"`
}

// LoggingConfig controls the slog handler installed by the CLI.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is "text" or "json".
	Format string `mapstructure:"format"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Shader: ShaderConfig{
			Path:   "shader.wgsl",
			Notify: false,
		},
		Render: RenderConfig{
			Backend:        "auto",
			FramesInFlight: 3,
			FrameRate:      60,
			Width:          1280,
			Height:         720,
		},
		Update: UpdateConfig{
			Rate: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("shader.path", defaults.Shader.Path)
	v.SetDefault("shader.notify", defaults.Shader.Notify)

	v.SetDefault("render.backend", defaults.Render.Backend)
	v.SetDefault("render.frames_in_flight", defaults.Render.FramesInFlight)
	v.SetDefault("render.frame_rate", defaults.Render.FrameRate)
	v.SetDefault("render.width", defaults.Render.Width)
	v.SetDefault("render.height", defaults.Render.Height)
	v.SetDefault("render.snapshot", defaults.Render.Snapshot)

	v.SetDefault("update.rate", defaults.Update.Rate)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// UpdateInterval converts Update.Rate to a poll interval.
func (c *Config) UpdateInterval() time.Duration {
	return rateToInterval(c.Update.Rate)
}

// FrameInterval converts Render.FrameRate to a frame interval.
func (c *Config) FrameInterval() time.Duration {
	return rateToInterval(c.Render.FrameRate)
}

func rateToInterval(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}
