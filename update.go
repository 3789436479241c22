package shaderpg

import (
	"context"
	"time"
)

// Update performs one tick of the update loop: poll the shader source,
// rebuild if it changed, then sweep retired pipelines.
//
// Poll errors other than a missing file are logged and tolerated; the next
// tick polls again.
func (a *App) Update() {
	changed, err := a.poller.Poll()
	switch {
	case err != nil:
		Logger().Warn("shader source poll failed", "path", a.source.Path(), "error", err)
	case changed:
		Logger().Debug("shader source changed", "path", a.source.Path(), "mtime", a.poller.Last())
		_, _ = a.Rebuild()
	}
	a.Sweep()
}

// Run drives Update at the configured interval until ctx is cancelled.
// When filesystem notifications are enabled, a write to the shader file
// triggers an immediate extra tick.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.opts.updateInterval)
	defer ticker.Stop()

	var (
		events <-chan struct{}
		errs   <-chan error
	)
	if a.notifier != nil {
		events = a.notifier.Events()
		errs = a.notifier.Errors()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.Update()
		case <-events:
			a.Update()
		case err := <-errs:
			Logger().Warn("shader file watcher error", "error", err)
		}
	}
}
