package shaderpg

import (
	"log/slog"
	"sync/atomic"
)

// logger is read by the update and frame goroutines while SetLogger may
// replace it.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(silent())
}

// silent returns a logger whose handler is disabled at every level, so
// log calls return before their attributes are formatted.
func silent() *slog.Logger { return slog.New(slog.DiscardHandler) }

// SetLogger replaces the logger used by shaderpg. Nothing is logged until
// it is called, and nil switches logging off again.
//
// New hands the logger to the App's compiler, builder and rerecorder, so
// set it before creating an App.
//
// Levels:
//   - Debug: pipeline swaps, sweeps and manual reloads
//   - Info: startup and a freshly written default shader
//   - Warn: source poll and file watcher errors
//   - Error: compile and build failures, which never stop the App
//
// Example:
//
//	shaderpg.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silent()
	}
	logger.Store(l)
}

// Logger returns the logger set by SetLogger.
func Logger() *slog.Logger {
	return logger.Load()
}

// propagateLogger calls SetLogger(l) on each target that has one.
func propagateLogger(l *slog.Logger, targets ...any) {
	for _, t := range targets {
		if s, ok := t.(interface{ SetLogger(*slog.Logger) }); ok {
			s.SetLogger(l)
		}
	}
}
