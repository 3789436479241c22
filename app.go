package shaderpg

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"golang.org/x/sync/semaphore"

	"github.com/gogpu/shaderpg/internal/source"
	"github.com/gogpu/shaderpg/internal/watch"
)

// App owns the hot-reloadable pipeline state shared by the update loop and
// the frame loop.
//
// Exactly one pipeline is current at any time; it is the only one frames
// bind. A pipeline replaced by a rebuild moves to the discard list and is
// destroyed by Sweep once at least frames-in-flight frames have been
// recorded since the most recent swap.
//
// All methods are safe for concurrent use.
type App struct {
	compiler Compiler
	builder  Builder
	opts     options

	source   *source.Store
	poller   *watch.Poller
	notifier *watch.Notifier

	// rebuildSem allows only one rebuild at a time. Compilation runs
	// outside mu so frames keep rendering while a shader compiles.
	rebuildSem *semaphore.Weighted

	// mu guards current and discards. Frames hold it shared while they
	// record; swaps and sweeps hold it exclusively.
	mu       sync.RWMutex
	current  Pipeline
	discards []Pipeline
	closed   bool

	// inFlight counts frames recorded against the current pipeline.
	// Incremented under mu.RLock, reset under mu.Lock.
	inFlight atomic.Uint64
	rerecord atomic.Bool

	start time.Time
}

// New creates an App and builds the initial pipeline.
//
// The shader source is read from the configured path; if it is missing the
// bundled default is written there first. If the source on disk does not
// compile, the bundled default is built instead so that the App always has
// a current pipeline. Filesystem errors other than a missing file are
// returned.
func New(compiler Compiler, builder Builder, opts ...Option) (*App, error) {
	if compiler == nil || builder == nil {
		return nil, fmt.Errorf("shaderpg: compiler and builder are required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		compiler:   compiler,
		builder:    builder,
		opts:       o,
		source:     source.NewStore(o.fs, o.shaderPath),
		rebuildSem: semaphore.NewWeighted(1),
		start:      time.Now(),
	}
	propagateLogger(Logger(), compiler, builder, o.rerecorder)

	text, created, err := a.source.Read()
	if err != nil {
		return nil, fmt.Errorf("shaderpg: %w", err)
	}
	if created {
		Logger().Info("wrote default shader", "path", a.source.Path())
	}

	p, err := a.build(text)
	if err != nil {
		Logger().Error("initial shader failed, using built-in default",
			"path", a.source.Path(), "error", err)
		if p, err = a.buildNamed("default", source.Default()); err != nil {
			return nil, fmt.Errorf("shaderpg: build default pipeline: %w", err)
		}
	}
	a.current = p

	if a.poller, err = watch.NewPoller(o.fs, o.shaderPath); err != nil {
		p.Destroy()
		return nil, fmt.Errorf("shaderpg: %w", err)
	}
	if o.notify {
		if a.notifier, err = watch.NewNotifier(o.shaderPath); err != nil {
			p.Destroy()
			return nil, fmt.Errorf("shaderpg: %w", err)
		}
	}

	Logger().Debug("app ready",
		"path", a.source.Path(),
		"frames_in_flight", o.framesInFlight,
		"update_interval", o.updateInterval)
	return a, nil
}

// Rebuild reads the shader source, compiles it and builds a new pipeline.
//
// On success the new pipeline becomes current, the previous one is appended
// to the discard list, the usage counter is reset and the renderer is asked
// to re-record. On failure the current pipeline and discard list are left
// unchanged and the error (a *CompileError, a *BuildError or a filesystem
// error) is logged and returned; it is never fatal.
func (a *App) Rebuild() (Pipeline, error) {
	// Rebuilds are short and synchronous; waiting for a concurrent one
	// cannot be cancelled.
	if err := a.rebuildSem.Acquire(context.Background(), 1); err != nil {
		return nil, err
	}
	defer a.rebuildSem.Release(1)

	if a.isClosed() {
		return nil, ErrClosed
	}

	text, created, err := a.source.Read()
	if err != nil {
		Logger().Error("shader source unreadable", "path", a.source.Path(), "error", err)
		return nil, err
	}
	if created {
		Logger().Info("wrote default shader", "path", a.source.Path())
	}

	p, err := a.build(text)
	if err != nil {
		Logger().Error("shader rebuild failed, keeping current pipeline",
			"path", a.source.Path(), "error", err)
		return nil, err
	}
	if err := a.install(p); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

// Trigger forces a rebuild attempt regardless of the source's modification
// time. The poller's stored timestamp is not touched.
func (a *App) Trigger() error {
	_, err := a.Rebuild()
	return err
}

// HandleKey forces a rebuild when key is the configured trigger key
// (Space by default). Its signature matches key-press callbacks of
// gpucontext event sources.
func (a *App) HandleKey(key gpucontext.Key, _ gpucontext.Modifiers) {
	if key != a.opts.triggerKey {
		return
	}
	Logger().Debug("manual shader reload")
	_ = a.Trigger()
}

func (a *App) build(text string) (Pipeline, error) {
	return a.buildNamed(a.source.Name(), text)
}

func (a *App) buildNamed(name, text string) (Pipeline, error) {
	spirv, err := a.compiler.Compile(name, text)
	if err != nil {
		return nil, NewCompileError(name, err)
	}
	p, err := a.builder.Build(spirv)
	if err != nil {
		return nil, &BuildError{Err: err}
	}
	if p == nil {
		return nil, &BuildError{Err: fmt.Errorf("builder returned no pipeline")}
	}
	return p, nil
}

// install makes p current and retires the previous pipeline.
func (a *App) install(p Pipeline) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	old := a.current
	a.current = p
	a.discards = append(a.discards, old)
	a.inFlight.Store(0)
	a.rerecord.Store(true)
	pending := len(a.discards)
	a.mu.Unlock()

	if a.opts.rerecorder != nil {
		a.opts.rerecorder.RequestRerecord()
	}
	Logger().Debug("pipeline swapped", "pending_discards", pending)
	return nil
}

// Sweep destroys every discarded pipeline once at least frames-in-flight
// frames have been recorded since the most recent swap, and reports how
// many were freed. Before that threshold it does nothing.
//
// All discards are freed together: the counter only resets on a swap, so
// once it reaches the threshold every frame still queued on the GPU
// references the current pipeline.
func (a *App) Sweep() int {
	a.mu.Lock()
	if len(a.discards) == 0 || a.inFlight.Load() < a.opts.framesInFlight {
		a.mu.Unlock()
		return 0
	}
	freed := a.discards
	a.discards = nil
	a.mu.Unlock()

	for _, p := range freed {
		p.Destroy()
	}
	Logger().Debug("retired pipelines freed", "count", len(freed))
	return len(freed)
}

// RecordFrame records one frame into t against the current pipeline and
// counts it toward retirement of discarded pipelines.
//
// The current pipeline cannot change while the frame is being recorded.
func (a *App) RecordFrame(t Target) FrameInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := a.inFlight.Add(1)
	info := FrameInfo{
		Pipeline: a.current,
		InFlight: n,
		Rerecord: a.rerecord.Swap(false),
		Uniforms: a.uniforms(t.Size()),
	}
	if a.current == nil {
		return info
	}
	t.WriteUniforms(info.Uniforms)
	t.DrawQuad(a.current)
	return info
}

func (a *App) uniforms(w, h uint32) Uniforms {
	aspect := float32(1)
	if h > 0 {
		aspect = float32(w) / float32(h)
	}
	return Uniforms{
		Time:   float32(time.Since(a.start).Seconds()),
		Aspect: aspect,
		Width:  float32(w),
		Height: float32(h),
	}
}

// Current returns the current pipeline.
func (a *App) Current() Pipeline {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Discarded returns the number of retired pipelines awaiting release.
func (a *App) Discarded() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.discards)
}

// InFlight returns the number of frames recorded since the most recent
// swap.
func (a *App) InFlight() uint64 {
	return a.inFlight.Load()
}

// FramesInFlight returns the configured retirement threshold.
func (a *App) FramesInFlight() uint64 {
	return a.opts.framesInFlight
}

// ShaderPath returns the path of the watched shader source.
func (a *App) ShaderPath() string {
	return a.source.Path()
}

// Close stops the filesystem notifier and destroys the current and all
// discarded pipelines. The caller must ensure the GPU no longer uses them,
// typically by draining the renderer first. Close waits for a rebuild in
// progress to finish. Close is idempotent.
func (a *App) Close() error {
	if err := a.rebuildSem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer a.rebuildSem.Release(1)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	pipelines := append(a.discards, a.current)
	a.discards = nil
	a.current = nil
	a.mu.Unlock()

	for _, p := range pipelines {
		if p != nil {
			p.Destroy()
		}
	}
	if a.notifier != nil {
		return a.notifier.Close()
	}
	return nil
}

func (a *App) isClosed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}
