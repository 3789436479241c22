//go:build !nogpu

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/shaderpg/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level     string
		format    string
		wantDebug bool
		wantJSON  bool
	}{
		{"debug", "text", true, false},
		{"info", "json", false, true},
		{"WARN", "JSON", false, true},
		{"bogus", "text", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(config.LoggingConfig{Level: tt.level, Format: tt.format}, &buf)
			if got := l.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			l.Error("probe")
			if got := strings.HasPrefix(buf.String(), "{"); got != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %q", got, tt.wantJSON, buf.String())
			}
		})
	}
}

func TestRootCmdRejectsInvalidConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--backend", "noop", "--frames-in-flight", "0"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, ok := err.(config.ValidationErrors); !ok {
		t.Errorf("error = %T %v, want config.ValidationErrors", err, err)
	}
	if !strings.Contains(err.Error(), "render.frames_in_flight") {
		t.Errorf("error %q does not name the field", err)
	}
}

func TestRootCmdMissingConfigFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRootCmdRejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for positional argument")
	}
}

func TestRunNoopBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Shader.Path = filepath.Join(dir, "shader.wgsl")
	cfg.Render.Backend = "noop"
	cfg.Render.Width = 32
	cfg.Render.Height = 16
	cfg.Render.FrameRate = 100
	cfg.Render.Snapshot = filepath.Join(dir, "last.png")
	cfg.Update.Rate = 50

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := run(ctx, cfg, strings.NewReader("\n\n"), io.Discard)
	if err != nil {
		if msg := err.Error(); strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
			t.Skipf("Skipping: naga feature not yet implemented: %v", err)
		}
		t.Fatalf("run failed: %v", err)
	}

	if _, err := os.Stat(cfg.Shader.Path); err != nil {
		t.Errorf("default shader not written: %v", err)
	}
	data, err := os.ReadFile(cfg.Render.Snapshot)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("snapshot is not a PNG")
	}
}
