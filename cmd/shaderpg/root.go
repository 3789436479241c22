//go:build !nogpu

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gogpu/shaderpg/internal/config"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"config":           "config",
	"shader":           "shader.path",
	"notify":           "shader.notify",
	"backend":          "render.backend",
	"frames-in-flight": "render.frames_in_flight",
	"frame-rate":       "render.frame_rate",
	"width":            "render.width",
	"height":           "render.height",
	"snapshot":         "render.snapshot",
	"update-rate":      "update.rate",
	"log-level":        "logging.level",
	"log-format":       "logging.format",
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "shaderpg",
		Short: "Hot-reloading WGSL shader playground",
		Long: `shaderpg renders a full-screen WGSL fragment shader and rebuilds its
pipeline whenever the shader file changes. Retired pipelines are released
only after every frame that could still reference them has completed.

Each line read from standard input forces a reload, as if the trigger key
had been pressed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return initConfig(v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringP("config", "c", "", "config file (default is ./shaderpg.yaml)")
	f.StringP("shader", "s", defaults.Shader.Path, "WGSL fragment shader file, created if missing")
	f.Bool("notify", defaults.Shader.Notify, "also watch the shader with filesystem notifications")
	f.String("backend", defaults.Render.Backend, "GPU backend: "+strings.Join(config.ValidBackends(), ", "))
	f.IntP("frames-in-flight", "f", defaults.Render.FramesInFlight, "frames the GPU may have queued")
	f.Float64("frame-rate", defaults.Render.FrameRate, "target frames per second")
	f.Int("width", defaults.Render.Width, "render target width in pixels")
	f.Int("height", defaults.Render.Height, "render target height in pixels")
	f.String("snapshot", defaults.Render.Snapshot, "write the last frame to this PNG file on exit")
	f.Float64("update-rate", defaults.Update.Rate, "shader file polls per second")
	f.String("log-level", defaults.Logging.Level, "log level: "+strings.Join(config.ValidLogLevels(), ", "))
	f.String("log-format", defaults.Logging.Format, "log format: "+strings.Join(config.ValidLogFormats(), ", "))

	for flag, key := range flagKeys {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}

// initConfig layers defaults, the config file and SHADERPG_* environment
// variables under the bound flags.
func initConfig(v *viper.Viper) error {
	config.SetDefaults(v)

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("shaderpg")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	// e.g. SHADERPG_RENDER_FRAMES_IN_FLIGHT for render.frames_in_flight
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
