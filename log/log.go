// Package log provides structured logging for the teesigner enclave
// service. It wraps zerolog with per-module child loggers so that every
// subsystem (server, signer, slashing, keystore, attest) reports under its
// own "module" attribute.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with signer-specific context.
type Logger struct {
	inner zerolog.Logger
}

// defaultLogger is the process-wide logger used by the package-level
// convenience functions.
var defaultLogger *Logger

func init() {
	defaultLogger = New(zerolog.InfoLevel)
}

// New creates a Logger that writes JSON to stderr at the given level.
func New(level zerolog.Level) *Logger {
	l := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	return &Logger{inner: l}
}

// NewWithWriter creates a Logger writing to the supplied destination. This
// is useful for testing or for writing to a custom sink.
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{inner: l}
}

// SetDefault replaces the package-level default logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Default returns the current package-level default logger.
func Default() *Logger {
	return defaultLogger
}

// Module returns a child logger with an additional "module" attribute. This
// is the primary way subsystems obtain their own contextual logger.
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With().Str("module", name).Logger()}
}

// With returns a child logger with an additional string key-value pair.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{inner: l.inner.With().Str(key, value).Logger()}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) { emit(l.inner.Debug(), msg, args) }

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) { emit(l.inner.Info(), msg, args) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) { emit(l.inner.Warn(), msg, args) }

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) { emit(l.inner.Error(), msg, args) }

// emit attaches alternating key-value pairs to the event. A trailing key
// without a value is dropped.
func emit(e *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}

// ---------------------------------------------------------------------------
// Package-level convenience functions -- delegate to defaultLogger.
// ---------------------------------------------------------------------------

// Debug logs at debug level using the default logger.
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }

// Info logs at info level using the default logger.
func Info(msg string, args ...any) { defaultLogger.Info(msg, args...) }

// Warn logs at warn level using the default logger.
func Warn(msg string, args ...any) { defaultLogger.Warn(msg, args...) }

// Error logs at error level using the default logger.
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }
