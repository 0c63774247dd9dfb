package kizuna

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// loggerPtr stores the active logger. Handles are released from any
// goroutine, so the logger is swapped atomically.
var loggerPtr atomic.Pointer[zap.Logger]

func init() {
	loggerPtr.Store(zap.NewNop())
}

// SetLogger configures the logger used by kizuna. By default nothing is
// logged. Pass nil to restore the silent default.
//
// Levels used:
//   - Debug: object destruction, weak cleanup, registry changes
//   - Warn: refused resurrections, duplicate registrations
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Safe for concurrent use.
func Logger() *zap.Logger {
	return loggerPtr.Load()
}
