// Package logger provides a module-scoped structured logging wrapper around
// log/slog. Components obtain a Logger scoped to their own name so that log
// lines can be filtered or routed per subsystem (sync, snapshot, recording,
// destination, broker, nvrapi) without every call site repeating a field.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Field is a structured key/value pair attached to a log line.
type Field = slog.Attr

// String, Int, Bool, Err and Any mirror the slog.Attr constructors so
// call sites don't need to import log/slog directly.
func String(key, value string) Field { return slog.String(key, value) }
func Int(key string, value int) Field { return slog.Int(key, value) }
func Bool(key string, value bool) Field { return slog.Bool(key, value) }
func Err(err error) Field {
	if err == nil {
		return slog.Any("error", nil)
	}
	return slog.String("error", err.Error())
}
func Any(key string, value any) Field { return slog.Any(key, value) }

// Logger is the logging interface injected throughout camsync. It is a thin
// facade over *slog.Logger with module scoping baked in.
type Logger interface {
	Module(name string) Logger
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Critical logs at error level with an extra critical=true field. It
	// forwards nothing to telemetry; that is internal/errors.TaskLostCritical.
	Critical(msg string, fields ...Field)
	Slog() *slog.Logger
}

type moduleLogger struct {
	base   *slog.Logger
	module string
}

var (
	mu          sync.RWMutex
	level       = new(slog.LevelVar)
	writer      io.Writer = os.Stderr
	writerMu    sync.Mutex
	currentPath string
)

// Init configures the process-wide log level and destination. path == ""
// logs to stderr. It is safe to call again later (e.g. on SIGHUP) to reopen
// the file for external log rotation.
func Init(levelName, path string) error {
	mu.Lock()
	defer mu.Unlock()

	level.Set(parseLevel(levelName))

	writerMu.Lock()
	defer writerMu.Unlock()

	if path == "" {
		writer = os.Stderr
		currentPath = ""
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	writer = f
	currentPath = path
	return nil
}

// Reopen opens the current log file path again, for use from a SIGHUP
// handler after external rotation tools (logrotate) rename the file. The
// previous handle is not closed, and only loggers created after the call
// write to the new file; existing loggers keep the handle they were built with.
func Reopen() error {
	writerMu.Lock()
	path := currentPath
	writerMu.Unlock()
	if path == "" {
		return nil
	}
	return Init(levelNameOf(level.Level()), path)
}

func parseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelNameOf(l slog.Level) string {
	switch {
	case l <= slog.LevelDebug:
		return "debug"
	case l <= slog.LevelInfo:
		return "info"
	case l <= slog.LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

func currentWriter() io.Writer {
	writerMu.Lock()
	defer writerMu.Unlock()
	return writer
}

// New returns a Logger scoped to module. Call this after Init, or rely on
// the stderr default for tests and CLI tools that never call Init.
func New(module string) Logger {
	h := slog.NewJSONHandler(currentWriter(), &slog.HandlerOptions{Level: level})
	base := slog.New(h).With(slog.String("module", module))
	return &moduleLogger{base: base, module: module}
}

func (m *moduleLogger) Module(name string) Logger {
	full := name
	if m.module != "" {
		full = m.module + "." + name
	}
	return &moduleLogger{base: slog.New(m.base.Handler()).With(slog.String("module", full)), module: full}
}

func (m *moduleLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return &moduleLogger{base: m.base.With(args...), module: m.module}
}

func (m *moduleLogger) log(level slog.Level, msg string, fields []Field) {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	m.base.Log(context.Background(), level, msg, args...)
}

func (m *moduleLogger) Debug(msg string, fields ...Field) { m.log(slog.LevelDebug, msg, fields) }
func (m *moduleLogger) Info(msg string, fields ...Field)  { m.log(slog.LevelInfo, msg, fields) }
func (m *moduleLogger) Warn(msg string, fields ...Field)  { m.log(slog.LevelWarn, msg, fields) }
func (m *moduleLogger) Error(msg string, fields ...Field) { m.log(slog.LevelError, msg, fields) }

// Critical logs at error level with an extra "critical"=true field, marking
// lines the operator should treat as invariant violations even though the
// process itself keeps running (see spec §7 TaskLostCritical).
func (m *moduleLogger) Critical(msg string, fields ...Field) {
	fields = append(fields, slog.Bool("critical", true))
	m.log(slog.LevelError, msg, fields)
}

func (m *moduleLogger) Slog() *slog.Logger { return m.base }

// Discard returns a Logger that drops everything, for tests that don't care
// about log output.
func Discard() Logger {
	h := slog.NewTextHandler(io.Discard, nil)
	return &moduleLogger{base: slog.New(h), module: "discard"}
}
