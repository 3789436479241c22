//go:build !nogpu

package gpu

import (
	"log/slog"
	"sync/atomic"
)

// backendLogger is shared by the compiler, builder, renderer and device
// code. The SetLogger methods on each of them replace it.
var backendLogger atomic.Pointer[slog.Logger]

func init() {
	backendLogger.Store(slog.New(slog.DiscardHandler))
}

func slogger() *slog.Logger { return backendLogger.Load() }

func setLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	backendLogger.Store(l)
}
