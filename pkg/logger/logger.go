// Package logger is the process-wide leveled logger.
//
// It keeps the familiar printf-style helpers (Tracef, Debugf, ...) while
// emitting through a pslog logger, so package code can log without threading a
// context while hosts still get structured output.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"pkt.systems/pslog"
)

// Level is the verbosity threshold used by the logger.
//
// Lower values are more verbose.
type Level int

const (
	// LevelTrace enables extremely verbose logs (frames, reducer inputs).
	LevelTrace Level = iota
	// LevelDebug enables verbose logs intended for debugging.
	LevelDebug
	// LevelInfo enables informational logs (default).
	LevelInfo
	// LevelWarn enables only warnings and errors.
	LevelWarn
	// LevelError enables only error logs.
	LevelError
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

var (
	mu       sync.RWMutex
	level              = LevelInfo
	out      io.Writer = os.Stderr
	global   pslog.Logger
	injected bool
)

// ParseLevel parses a log level string into a Level.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}

// SetLogger replaces the backing pslog logger. The Level threshold still
// applies to the printf-style helpers.
func SetLogger(l pslog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = l
	injected = l != nil
}

// SetOutput rebuilds the backing logger to write console output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	global = newConsole(w, level)
	injected = false
}

// SetLevel sets the global log level threshold.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	if !injected {
		global = newConsole(out, l)
	}
}

// Enabled reports whether a level would be emitted by the current configuration.
func Enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

// Logger returns the backing pslog logger.
func Logger() pslog.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = newConsole(out, level)
	}
	return global
}

// With returns the backing logger annotated with key/value fields.
func With(keyvals ...any) pslog.Logger {
	return Logger().With(keyvals...)
}

// newConsole builds the default console logger. Warn thresholds are enforced
// by Enabled for the printf helpers; the backend itself filters from info.
func newConsole(w io.Writer, l Level) pslog.Logger {
	opts := pslog.Options{Mode: pslog.ModeConsole, MinLevel: pslog.InfoLevel}
	switch l {
	case LevelTrace:
		opts.MinLevel = pslog.TraceLevel
	case LevelDebug:
		opts.MinLevel = pslog.DebugLevel
	case LevelError:
		opts.MinLevel = pslog.ErrorLevel
	}
	return pslog.NewWithOptions(w, opts)
}

// Tracef logs at TRACE level.
func Tracef(format string, args ...any) {
	if !Enabled(LevelTrace) {
		return
	}
	Logger().Trace(fmt.Sprintf(format, args...))
}

// Debugf logs at DEBUG level.
func Debugf(format string, args ...any) {
	if !Enabled(LevelDebug) {
		return
	}
	Logger().Debug(fmt.Sprintf(format, args...))
}

// Infof logs at INFO level.
func Infof(format string, args ...any) {
	if !Enabled(LevelInfo) {
		return
	}
	Logger().Info(fmt.Sprintf(format, args...))
}

// Warnf logs at WARN level.
func Warnf(format string, args ...any) {
	if !Enabled(LevelWarn) {
		return
	}
	Logger().Warn(fmt.Sprintf(format, args...))
}

// Errorf logs at ERROR level.
func Errorf(format string, args ...any) {
	if !Enabled(LevelError) {
		return
	}
	Logger().Error(fmt.Sprintf(format, args...))
}
