package applog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxFileSizeMB = 5
	maxBackups    = 3
	maxValueLen   = 200
	truncSuffix   = "…"
)

// Options controls where and how much is logged.
type Options struct {
	Dir    string // log directory; the file is tabgruppen.log
	Level  string // debug, info, warn, error
	Stderr bool   // mirror log lines to stderr
}

var (
	mu     sync.Mutex
	logger *slog.Logger
	closer io.Closer
)

// Init opens the rotating log file. Call once at startup.
// Log calls are no-ops until Init or SetOutput is called.
func Init(opts Options) error {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return err
	}

	lj := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, "tabgruppen.log"),
		MaxSize:    maxFileSizeMB,
		MaxBackups: maxBackups,
	}

	var w io.Writer = lj
	if opts.Stderr {
		w = io.MultiWriter(os.Stderr, lj)
	}
	SetOutput(w, opts.Level)

	mu.Lock()
	closer = lj
	mu.Unlock()
	return nil
}

// SetOutput logs to w at the given level. Used by Init and by tests.
func SetOutput(w io.Writer, level string) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	mu.Lock()
	logger = slog.New(h)
	mu.Unlock()
}

// ParseLevel maps a level name to a slog level; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		closer.Close()
		closer = nil
	}
	logger = nil
}

// Debug logs a low-severity event, e.g. an expected race.
func Debug(event string, kv ...any) {
	write(slog.LevelDebug, event, nil, kv)
}

// Info logs a structured event line.
//
//	applog.Info("ws.connected", "remote", addr)
//	applog.Info("group.created", "group", 12, "tabs", 2)
func Info(event string, kv ...any) {
	write(slog.LevelInfo, event, nil, kv)
}

// Warn logs an event that needs attention but is not a failure.
func Warn(event string, kv ...any) {
	write(slog.LevelWarn, event, nil, kv)
}

// Error logs an event with an error.
//
//	applog.Error("ws.send", err, "action", "groupTabs")
func Error(event string, err error, kv ...any) {
	write(slog.LevelError, event, err, kv)
}

func write(level slog.Level, event string, err error, kv []any) {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil || !l.Enabled(context.Background(), level) {
		return
	}

	attrs := make([]any, 0, len(kv)+2)
	if err != nil {
		attrs = append(attrs, slog.String("err", truncate(err.Error())))
	}
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, slog.String(fmt.Sprint(kv[i]), truncate(fmt.Sprint(kv[i+1]))))
	}
	l.Log(context.Background(), level, event, attrs...)
}

func truncate(s string) string {
	if len(s) > maxValueLen {
		return s[:maxValueLen] + truncSuffix
	}
	return s
}
