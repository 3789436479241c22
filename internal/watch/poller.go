// Package watch detects modifications of the shader source file.
//
// Poller compares the file's modification time against the last observed
// value and reports each genuine change once. Notifier optionally wakes a
// polling loop early using filesystem notifications; it never replaces the
// modification-time check.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Poller reports modifications of a single file by modification time.
type Poller struct {
	fs   afero.Fs
	path string

	mu   sync.Mutex
	last time.Time
}

// NewPoller creates a Poller for path and records its current modification
// time as the baseline. A missing file yields a zero baseline; any other
// stat error is returned.
func NewPoller(fsys afero.Fs, path string) (*Poller, error) {
	p := &Poller{fs: fsys, path: path}
	mtime, err := p.stat()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	p.last = mtime
	return p, nil
}

// Poll returns true if the file's modification time is later than the last
// observed one and stores the new value, so each modification is reported
// at most once.
//
// A missing file is not a change: the baseline is cleared so that a
// re-created file is reported. Other stat errors are returned with changed
// set to false and the baseline untouched.
func (p *Poller) Poll() (bool, error) {
	mtime, err := p.stat()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.last = time.Time{}
			return false, nil
		}
		return false, err
	}
	if !mtime.After(p.last) {
		return false, nil
	}
	p.last = mtime
	return true, nil
}

// Last returns the last observed modification time.
func (p *Poller) Last() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Path returns the watched path.
func (p *Poller) Path() string { return p.path }

func (p *Poller) stat() (time.Time, error) {
	info, err := p.fs.Stat(p.path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", p.path, err)
	}
	return info.ModTime(), nil
}
