package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu        sync.RWMutex
	stdLogger = newLogger(os.Stdout, "info", "console")
)

func newLogger(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("app", "homeports").
		Logger()
}

// Setup replaces the process logger. format is "console" or "json".
func Setup(w io.Writer, level, format string) {
	l := newLogger(w, level, format)
	mu.Lock()
	stdLogger = l
	mu.Unlock()
}

// Get returns the process logger for structured use.
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := stdLogger
	return &l
}

// Component returns a child logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

func Debugf(format string, v ...interface{}) {
	Get().Debug().Msgf(format, v...)
}

func Infof(format string, v ...interface{}) {
	Get().Info().Msgf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	Get().Warn().Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	Get().Error().Msgf(format, v...)
}

func Fatalf(format string, v ...interface{}) {
	Get().Fatal().Msgf(format, v...)
}
