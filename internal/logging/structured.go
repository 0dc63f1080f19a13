// Package logging provides structured JSON logging for Navigator components.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	baseMu sync.RWMutex
	base   = newBase(os.Stderr, LevelInfo, "json")
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.ErrorFieldName = "error"
	zerolog.TimeFieldFormat = time.RFC3339
}

func newBase(w io.Writer, level Level, format string) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(level Level) zerolog.Level {
	switch Level(strings.ToLower(string(level))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup replaces the process wide sink. Loggers created earlier keep
// writing to the sink that existed when they were created.
func Setup(w io.Writer, level Level, format string) {
	baseMu.Lock()
	defer baseMu.Unlock()
	base = newBase(w, level, format)
}

// Logger provides structured logging
type Logger struct {
	component string
	zl        zerolog.Logger
}

// New creates a new logger for a component
func New(component string) *Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return &Logger{
		component: component,
		zl:        base.With().Str("component", component).Logger(),
	}
}

// With returns a logger carrying an extra context field on every event.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{
		component: l.component,
		zl:        l.zl.With().Interface(key, value).Logger(),
	}
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

// log emits a structured log event
func (l *Logger) log(e *zerolog.Event, event string, extra map[string]any, err error) {
	if e == nil {
		return
	}
	e = e.Str("event", event)
	if err != nil {
		e = e.Err(err)
	}
	if len(extra) > 0 {
		e = e.Interface("extra", extra)
	}
	e.Send()
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]any) {
	l.log(l.zl.Debug(), event, extra, nil)
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]any) {
	l.log(l.zl.Info(), event, extra, nil)
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]any, err error) {
	l.log(l.zl.Warn(), event, extra, err)
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]any, err error) {
	l.log(l.zl.Error(), event, extra, err)
}

// TimedEvent logs an event with duration
func (l *Logger) TimedEvent(event string, start time.Time, extra map[string]any) {
	e := l.zl.Info().Int64("duration_ms", time.Since(start).Milliseconds())
	l.log(e, event, extra, nil)
}
