// Package log provides leveled logging for the turn-processing engine.
// The default backend is kataras/golog; callers may substitute any
// implementation of Logger.
package log

import (
	"fmt"

	"github.com/kataras/golog"
)

// Level represents logging severity.
type Level int

const (
	// LevelDebug for detailed debugging information
	LevelDebug Level = iota
	// LevelInfo for general informational messages
	LevelInfo
	// LevelWarn for warning messages
	LevelWarn
	// LevelError for error messages
	LevelError
	// LevelNone disables all logging
	LevelNone
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// Logger is the logging interface used across the engine.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// GologLogger implements Logger using kataras/golog.
type GologLogger struct {
	logger *golog.Logger
}

var _ Logger = (*GologLogger)(nil)

// NewGologLogger wraps an existing golog.Logger.
func NewGologLogger(logger *golog.Logger) *GologLogger {
	return &GologLogger{logger: logger}
}

// New returns a golog-backed logger at the given level.
func New(level Level) *GologLogger {
	logger := golog.New()
	logger.SetLevel(gologLevel(level))
	return &GologLogger{logger: logger}
}

func gologLevel(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelNone:
		return "disable"
	default:
		return "info"
	}
}

// Debugf logs debug messages.
func (l *GologLogger) Debugf(format string, v ...any) {
	l.logger.Debugf(format, v...)
}

// Infof logs informational messages.
func (l *GologLogger) Infof(format string, v ...any) {
	l.logger.Infof(format, v...)
}

// Warnf logs warning messages.
func (l *GologLogger) Warnf(format string, v ...any) {
	l.logger.Warnf(format, v...)
}

// Errorf logs error messages.
func (l *GologLogger) Errorf(format string, v ...any) {
	l.logger.Errorf(format, v...)
}

// SetLevel changes the backend level.
func (l *GologLogger) SetLevel(level Level) {
	l.logger.SetLevel(gologLevel(level))
}

// NopLogger discards everything.
type NopLogger struct{}

var _ Logger = (*NopLogger)(nil)

// Debugf does nothing.
func (NopLogger) Debugf(string, ...any) {}

// Infof does nothing.
func (NopLogger) Infof(string, ...any) {}

// Warnf does nothing.
func (NopLogger) Warnf(string, ...any) {}

// Errorf does nothing.
func (NopLogger) Errorf(string, ...any) {}

// Package-level logger, info level by default.
var defaultLogger Logger = New(LevelInfo)

// SetDefault sets the package-level logger.
func SetDefault(logger Logger) {
	defaultLogger = logger
}

// Default returns the package-level logger.
func Default() Logger {
	return defaultLogger
}

// Debugf logs a debug message using the package-level logger.
func Debugf(format string, v ...any) {
	defaultLogger.Debugf(format, v...)
}

// Infof logs an informational message using the package-level logger.
func Infof(format string, v ...any) {
	defaultLogger.Infof(format, v...)
}

// Warnf logs a warning message using the package-level logger.
func Warnf(format string, v ...any) {
	defaultLogger.Warnf(format, v...)
}

// Errorf logs an error message using the package-level logger.
func Errorf(format string, v ...any) {
	defaultLogger.Errorf(format, v...)
}
