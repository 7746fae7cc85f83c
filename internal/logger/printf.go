package logger

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
)

var current atomic.Pointer[slog.Logger]

// Init replaces the logger used by the package level helpers.
func Init(l *slog.Logger) {
	current.Store(l)
	slog.SetDefault(l)
}

// Logger returns the active logger.
func Logger() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// logf records the message with the source of the helper's caller.
func logf(level slog.Level, format string, args ...any) {
	l := Logger()
	ctx := context.Background()
	if !l.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	_ = l.Handler().Handle(ctx, record)
}

func Debugf(format string, args ...any)   { logf(slog.LevelDebug, format, args...) }
func Infof(format string, args ...any)    { logf(slog.LevelInfo, format, args...) }
func Warningf(format string, args ...any) { logf(slog.LevelWarn, format, args...) }
func Errorf(format string, args ...any)   { logf(slog.LevelError, format, args...) }

func Info(msg string)    { logf(slog.LevelInfo, "%s", msg) }
func Warning(msg string) { logf(slog.LevelWarn, "%s", msg) }
