package shaderpg

import (
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/spf13/afero"
)

const (
	// DefaultShaderPath is the shader source file used when none is given.
	DefaultShaderPath = "shader.wgsl"

	// DefaultFramesInFlight matches a triple-buffered presentation queue.
	DefaultFramesInFlight = 3

	// DefaultUpdateInterval is the period of the update loop (2 Hz).
	DefaultUpdateInterval = 500 * time.Millisecond
)

// Option configures an App during creation.
//
// Example:
//
//	app, err := shaderpg.New(compiler, builder,
//	    shaderpg.WithShaderPath("shaders/frag.wgsl"),
//	    shaderpg.WithFramesInFlight(2),
//	)
type Option func(*options)

type options struct {
	fs             afero.Fs
	shaderPath     string
	framesInFlight uint64
	updateInterval time.Duration
	triggerKey     gpucontext.Key
	notify         bool
	rerecorder     Rerecorder
}

func defaultOptions() options {
	return options{
		fs:             afero.NewOsFs(),
		shaderPath:     DefaultShaderPath,
		framesInFlight: DefaultFramesInFlight,
		updateInterval: DefaultUpdateInterval,
		triggerKey:     gpucontext.KeySpace,
	}
}

// WithFS sets the filesystem the shader source is read from and written to.
// Tests typically pass afero.NewMemMapFs().
func WithFS(fs afero.Fs) Option {
	return func(o *options) {
		if fs != nil {
			o.fs = fs
		}
	}
}

// WithShaderPath sets the path of the watched shader source file.
func WithShaderPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.shaderPath = path
		}
	}
}

// WithFramesInFlight sets how many frames the presentation system may have
// queued at once. Retired pipelines are freed only after this many frames
// have been recorded since the most recent swap. Values below 1 are
// clamped to 1.
func WithFramesInFlight(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.framesInFlight = uint64(n)
	}
}

// WithUpdateInterval sets the period of the update loop run by Run.
// Non-positive durations are ignored.
func WithUpdateInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.updateInterval = d
		}
	}
}

// WithTriggerKey sets the key that forces a rebuild in HandleKey.
func WithTriggerKey(k gpucontext.Key) Option {
	return func(o *options) {
		o.triggerKey = k
	}
}

// WithNotify enables filesystem notifications that wake the update loop as
// soon as the shader file is written. Only meaningful for the OS
// filesystem.
func WithNotify(enabled bool) Option {
	return func(o *options) {
		o.notify = enabled
	}
}

// WithRerecorder registers the renderer that is told to re-record its
// command state after every successful swap.
func WithRerecorder(r Rerecorder) Option {
	return func(o *options) {
		o.rerecorder = r
	}
}
