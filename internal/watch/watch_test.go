package watch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func writeAt(t *testing.T, fsys afero.Fs, path string, mtime time.Time) {
	t.Helper()
	if err := afero.WriteFile(fsys, path, []byte("src"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fsys.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestPollerReportsEachChangeOnce(t *testing.T) {
	fsys := afero.NewMemMapFs()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	writeAt(t, fsys, "shader.wgsl", base)

	p, err := NewPoller(fsys, "shader.wgsl")
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}
	if !p.Last().Equal(base) {
		t.Errorf("baseline = %v, want %v", p.Last(), base)
	}

	if changed, err := p.Poll(); changed || err != nil {
		t.Fatalf("Poll() on unchanged file = %v, %v", changed, err)
	}

	writeAt(t, fsys, "shader.wgsl", base.Add(time.Second))
	if changed, err := p.Poll(); !changed || err != nil {
		t.Fatalf("Poll() after modification = %v, %v; want true, nil", changed, err)
	}
	if changed, _ := p.Poll(); changed {
		t.Error("Poll() reported the same modification twice")
	}
}

func TestPollerIgnoresOlderTimestamp(t *testing.T) {
	fsys := afero.NewMemMapFs()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	writeAt(t, fsys, "shader.wgsl", base)

	p, err := NewPoller(fsys, "shader.wgsl")
	if err != nil {
		t.Fatal(err)
	}
	writeAt(t, fsys, "shader.wgsl", base.Add(-time.Hour))
	if changed, _ := p.Poll(); changed {
		t.Error("Poll() reported a change for an older modification time")
	}
}

func TestPollerMissingFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	p, err := NewPoller(fsys, "shader.wgsl")
	if err != nil {
		t.Fatalf("NewPoller() on missing file error = %v", err)
	}
	if changed, err := p.Poll(); changed || err != nil {
		t.Fatalf("Poll() on missing file = %v, %v; want false, nil", changed, err)
	}

	writeAt(t, fsys, "shader.wgsl", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if changed, _ := p.Poll(); !changed {
		t.Error("Poll() did not report the created file")
	}
}

func TestPollerDeleteAndRecreate(t *testing.T) {
	fsys := afero.NewMemMapFs()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	writeAt(t, fsys, "shader.wgsl", base)
	p, err := NewPoller(fsys, "shader.wgsl")
	if err != nil {
		t.Fatal(err)
	}

	if err := fsys.Remove("shader.wgsl"); err != nil {
		t.Fatal(err)
	}
	if changed, err := p.Poll(); changed || err != nil {
		t.Fatalf("Poll() after delete = %v, %v", changed, err)
	}

	// Restored with the very same timestamp, e.g. by a VCS checkout.
	writeAt(t, fsys, "shader.wgsl", base)
	if changed, _ := p.Poll(); !changed {
		t.Error("Poll() did not report the re-created file")
	}
}

// statErrFs fails every Stat with a non-not-exist error.
type statErrFs struct {
	afero.Fs
	err error
}

func (f statErrFs) Stat(string) (os.FileInfo, error) { return nil, f.err }

func TestPollerStatErrorTolerated(t *testing.T) {
	mem := afero.NewMemMapFs()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	writeAt(t, mem, "shader.wgsl", base)
	p, err := NewPoller(mem, "shader.wgsl")
	if err != nil {
		t.Fatal(err)
	}

	errDenied := errors.New("permission denied")
	p.fs = statErrFs{Fs: mem, err: errDenied}
	changed, err := p.Poll()
	if changed {
		t.Error("Poll() reported a change on stat error")
	}
	if !errors.Is(err, errDenied) {
		t.Errorf("Poll() error = %v, want %v", err, errDenied)
	}
	if !p.Last().Equal(base) {
		t.Error("stat error must not touch the baseline")
	}
}

func TestNewPollerStatErrorIsFatal(t *testing.T) {
	errDenied := errors.New("permission denied")
	if _, err := NewPoller(statErrFs{Fs: afero.NewMemMapFs(), err: errDenied}, "shader.wgsl"); !errors.Is(err, errDenied) {
		t.Errorf("NewPoller() error = %v, want %v", err, errDenied)
	}
}

func TestNotifierSignalsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shader.wgsl")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := NewNotifier(path)
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer n.Close()

	// Writes to other files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-n.Events():
	case <-time.After(5 * time.Second):
		t.Fatal("no event after writing the watched file")
	}
}

func TestNotifierCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	n, err := NewNotifier(filepath.Join(dir, "shader.wgsl"))
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := n.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
