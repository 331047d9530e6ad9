package pica

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/pica/pipeline"
	"github.com/gogpu/pica/sched"
	"github.com/gogpu/pica/staging"
	"github.com/gogpu/pica/uniform"
	"github.com/gogpu/pica/vertex"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for pica and all its sub-packages.
// By default, pica produces no log output. Pass nil to restore the
// default silent behavior.
//
// Log levels used by pica:
//   - [slog.LevelDebug]: pipeline builds, skipped draws, buffer wraps
//   - [slog.LevelInfo]: disk cache lifecycle
//   - [slog.LevelWarn]: software fallbacks, unreadable caches
//   - [slog.LevelError]: guest data outside mapped memory
//
// Example:
//
//	pica.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	pipeline.SetLogger(l)
	sched.SetLogger(l)
	staging.SetLogger(l)
	uniform.SetLogger(l)
	vertex.SetLogger(l)
}

// Logger returns the current logger used by pica.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
