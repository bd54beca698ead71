// Package log provides the leveled logger shared by regionlens components.
package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level controls which messages a logger emits.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

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
	default:
		return fmt.Sprintf("LEVEL(%d)", int32(l))
	}
}

// ParseLevel maps a name such as "debug" or "WARN" onto a Level.
// The empty string means LevelInfo. Unknown names return LevelInfo
// and an error.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Logger is the logging interface regionlens components accept.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithField returns a logger whose lines carry key=value context.
	WithField(key string, value interface{}) Logger
	// WithFields returns a logger carrying every given field.
	WithFields(fields map[string]interface{}) Logger

	GetLevel() Level
	SetLevel(level Level)
}

type field struct {
	key   string
	value interface{}
}

// StandardLogger writes one timestamped line per message to a single
// writer. Field context is immutable per instance; the level is shared
// with every logger derived via WithField/WithFields, so SetLevel on
// any of them applies to all.
type StandardLogger struct {
	level  *atomic.Int32
	mu     *sync.Mutex // guards out
	out    io.Writer
	fields []field // sorted by key
}

// LoggerOption configures a StandardLogger.
type LoggerOption func(*StandardLogger)

// WithLevel sets the minimum level the logger emits.
func WithLevel(level Level) LoggerOption {
	return func(l *StandardLogger) {
		l.level.Store(int32(level))
	}
}

// WithOutput redirects log lines to out. The default is os.Stderr so
// command output on stdout stays clean.
func WithOutput(out io.Writer) LoggerOption {
	return func(l *StandardLogger) {
		l.out = out
	}
}

// NewStandardLogger creates a logger at LevelInfo writing to stderr,
// then applies the given options.
func NewStandardLogger(options ...LoggerOption) *StandardLogger {
	logger := &StandardLogger{
		level: new(atomic.Int32),
		mu:    new(sync.Mutex),
		out:   os.Stderr,
	}
	logger.level.Store(int32(LevelInfo))
	for _, option := range options {
		option(logger)
	}
	return logger
}

func (l *StandardLogger) emit(level Level, msg string, args ...interface{}) {
	if level < Level(l.level.Load()) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05.000Z07:00"))
	b.WriteByte(' ')
	b.WriteString(level.String())
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, f := range l.fields {
		fmt.Fprintf(&b, " %s=%v", f.key, f.value)
	}
	b.WriteByte('\n')

	l.mu.Lock()
	io.WriteString(l.out, b.String())
	l.mu.Unlock()
}

func (l *StandardLogger) Debug(msg string, args ...interface{}) {
	l.emit(LevelDebug, msg, args...)
}

func (l *StandardLogger) Info(msg string, args ...interface{}) {
	l.emit(LevelInfo, msg, args...)
}

func (l *StandardLogger) Warn(msg string, args ...interface{}) {
	l.emit(LevelWarn, msg, args...)
}

func (l *StandardLogger) Error(msg string, args ...interface{}) {
	l.emit(LevelError, msg, args...)
}

// WithField returns a logger whose lines carry key=value context.
func (l *StandardLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger carrying every given field. Fields with
// the same key replace inherited ones, and the result renders fields
// in key order so lines stay stable across runs.
func (l *StandardLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for _, f := range l.fields {
		merged[f.key] = f.value
	}
	for k, v := range fields {
		merged[k] = v
	}

	sorted := make([]field, 0, len(merged))
	for k, v := range merged {
		sorted = append(sorted, field{key: k, value: v})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].key < sorted[j].key })

	return &StandardLogger{
		level:  l.level,
		mu:     l.mu,
		out:    l.out,
		fields: sorted,
	}
}

// GetLevel returns the current minimum level.
func (l *StandardLogger) GetLevel() Level {
	return Level(l.level.Load())
}

// SetLevel changes the minimum level for this logger and every logger
// derived from it.
func (l *StandardLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

var defaultLogger = NewStandardLogger()

// GetDefaultLogger returns the logger components fall back to when no
// explicit logger is configured.
func GetDefaultLogger() *StandardLogger {
	return defaultLogger
}
