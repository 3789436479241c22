// Package source reads the watched shader source file. When the file does
// not exist yet, the bundled default fragment shader is written in its
// place so that a first run always has something to edit.
package source

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/afero"
)

//go:embed shaders/default.wgsl
var defaultFragment string

// Default returns the bundled default fragment shader source.
func Default() string {
	return defaultFragment
}

// Store reads a single shader source file from a filesystem.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a Store for path on fsys.
func NewStore(fsys afero.Fs, path string) *Store {
	return &Store{fs: fsys, path: path}
}

// Path returns the path of the source file.
func (s *Store) Path() string { return s.path }

// Name returns the base name of the source file, used to label
// diagnostics.
func (s *Store) Name() string { return filepath.Base(s.path) }

// Read returns the current source text. If the file does not exist, the
// default source is written to it and returned with created set to true.
// Any other filesystem error is returned unchanged.
func (s *Store) Read() (text string, created bool, err error) {
	data, err := afero.ReadFile(s.fs, s.path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		if err := s.writeDefault(); err != nil {
			return "", false, err
		}
		return defaultFragment, true, nil
	default:
		return "", false, fmt.Errorf("read %s: %w", s.path, err)
	}

	if !utf8.Valid(data) {
		return "", false, fmt.Errorf("read %s: source is not valid UTF-8", s.path)
	}
	return string(data), false, nil
}

func (s *Store) writeDefault() error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(s.fs, s.path, []byte(defaultFragment), 0o644); err != nil {
		return fmt.Errorf("write default shader %s: %w", s.path, err)
	}
	return nil
}
