//go:build !nogpu

package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/shaderpg"
	"github.com/gogpu/shaderpg/gpu"
	"github.com/gogpu/shaderpg/internal/config"
)

// statsInterval is how often frame statistics are logged at debug level.
const statsInterval = 10 * time.Second

func run(ctx context.Context, cfg *config.Config, stdin io.Reader, stderr io.Writer) error {
	logger := newLogger(cfg.Logging, stderr)
	shaderpg.SetLogger(logger)
	defer shaderpg.SetLogger(nil)

	fs := afero.NewOsFs()

	dev, err := gpu.OpenDevice(cfg.Render.Backend)
	if err != nil {
		return err
	}
	defer dev.Close()

	builder, err := gpu.NewBuilder(dev.Device)
	if err != nil {
		return err
	}
	defer builder.Destroy()

	renderer, err := gpu.NewRenderer(dev.Device, dev.Queue, builder, gpu.RendererConfig{
		Width:          uint32(cfg.Render.Width),
		Height:         uint32(cfg.Render.Height),
		FramesInFlight: cfg.Render.FramesInFlight,
	})
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	app, err := shaderpg.New(gpu.NewCompiler(), builder,
		shaderpg.WithFS(fs),
		shaderpg.WithShaderPath(cfg.Shader.Path),
		shaderpg.WithFramesInFlight(cfg.Render.FramesInFlight),
		shaderpg.WithUpdateInterval(cfg.UpdateInterval()),
		shaderpg.WithNotify(cfg.Shader.Notify),
		shaderpg.WithRerecorder(renderer),
	)
	if err != nil {
		return err
	}
	// Pipelines may only be destroyed once the GPU is done with them.
	defer func() {
		if err := renderer.Drain(); err != nil {
			logger.Warn("drain before shutdown failed", "error", err)
		}
		_ = app.Close()
	}()

	logger.Info("shaderpg started",
		"shader", app.ShaderPath(),
		"device", dev.Name,
		"backend", dev.Backend,
		"size", fmt.Sprintf("%dx%d", cfg.Render.Width, cfg.Render.Height),
		"frames_in_flight", cfg.Render.FramesInFlight)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go readTriggers(ctx, stdin, app)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Run(gctx)
	})
	g.Go(func() error {
		return frameLoop(gctx, logger, app, renderer, cfg.FrameInterval())
	})
	err = g.Wait()

	if cfg.Render.Snapshot != "" {
		if serr := writeSnapshot(fs, cfg.Render.Snapshot, renderer); serr != nil {
			logger.Error("snapshot failed", "path", cfg.Render.Snapshot, "error", serr)
			if err == nil {
				err = serr
			}
		} else {
			logger.Info("snapshot written", "path", cfg.Render.Snapshot)
		}
	}
	logger.Info("shaderpg stopped", "frames", renderer.Frames())
	return err
}

// frameLoop renders one frame per tick until ctx is cancelled.
func frameLoop(ctx context.Context, logger *slog.Logger, app *shaderpg.App, r *gpu.Renderer, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastStats := time.Now()
	var wait, cpu time.Duration
	var frames int

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		report, err := r.RenderFrame(app.RecordFrame)
		if err != nil {
			return fmt.Errorf("render frame: %w", err)
		}
		if report.Rerecorded {
			logger.Debug("frame re-recorded after pipeline swap", "frame", report.Index)
		}

		frames++
		wait += report.Wait
		cpu += report.CPU
		if since := time.Since(lastStats); since >= statsInterval {
			logger.Debug("frame stats",
				"fps", float64(frames)/since.Seconds(),
				"avg_wait", wait/time.Duration(frames),
				"avg_cpu", cpu/time.Duration(frames),
				"pending_discards", app.Discarded(),
				"in_flight", app.InFlight())
			lastStats = time.Now()
			frames, wait, cpu = 0, 0, 0
		}
	}
}

// readTriggers treats every line on r as a press of the reload key.
func readTriggers(ctx context.Context, r io.Reader, app *shaderpg.App) {
	if r == nil {
		return
	}
	var mods gpucontext.Modifiers
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		app.HandleKey(gpucontext.KeySpace, mods)
	}
}

func writeSnapshot(fs afero.Fs, path string, r *gpu.Renderer) error {
	img, err := r.Snapshot()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return afero.WriteFile(fs, path, buf.Bytes(), 0o644)
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
