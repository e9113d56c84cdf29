// Package logging provides the shared application logger: a slog backend
// with a colored, tag-aware console handler and plain-text daily files.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Retention for on-disk log files, in days.
const logRetentionDays = 7

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

var colorByTag = map[string]string{
	"Bootstrap": "\x1b[96m",
	"HTTP":      "\x1b[95m",
	"WebSocket": "\x1b[92m",
	"Recorder":  "\x1b[35m",
	"Emotion":   "\x1b[34m",
	"Journal":   "\x1b[94m",
	"Auth":      "\x1b[33m",
	"Storage":   "\x1b[36m",
}

const (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// consoleHandler renders records as colored single-line text. Tagged
// messages ("[Journal] ...") get the tag highlighted in its module color.
type consoleHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelColor = colorDebug
	case slog.LevelInfo:
		levelColor = colorInfo
	case slog.LevelWarn:
		levelColor = colorWarn
	case slog.LevelError:
		levelColor = colorError
	default:
		levelColor = colorReset
	}

	msg := r.Message
	if tag, rest, ok := splitTag(msg); ok {
		if tagColor, known := colorByTag[tag]; known {
			msg = fmt.Sprintf("%s[%s]%s%s", tagColor, tag, colorReset, rest)
		}
	}

	_, err := fmt.Fprintf(h.writer, "%s%s%s %s[%s]%s %s\n",
		colorTime, timeStr, colorReset,
		levelColor, strings.ToUpper(r.Level.String()), colorReset,
		msg)
	return err
}

func (h *consoleHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *consoleHandler) WithGroup(string) slog.Handler      { return h }

func splitTag(msg string) (tag, rest string, ok bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", "", false
	}
	end := strings.Index(msg, "]")
	if end <= 1 {
		return "", "", false
	}
	return msg[1:end], msg[end+1:], true
}

// fileHandler appends plain text records to a per-day log file.
type fileHandler struct {
	dir      string
	filename string
	level    slog.Level

	mu      sync.Mutex
	file    *os.File
	fileDay string
}

func (h *fileHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *fileHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	day := r.Time.Format("2006-01-02")
	if h.file == nil || day != h.fileDay {
		if err := h.rotate(day); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(h.file, "%s [%s] %s\n",
		r.Time.Format("2006-01-02 15:04:05.000"),
		strings.ToUpper(r.Level.String()),
		r.Message)
	return err
}

func (h *fileHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *fileHandler) WithGroup(string) slog.Handler      { return h }

func (h *fileHandler) rotate(day string) error {
	if h.file != nil {
		_ = h.file.Close()
		h.file = nil
	}

	name := fmt.Sprintf("%s.%s", h.filename, day)
	f, err := os.OpenFile(filepath.Join(h.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	h.file = f
	h.fileDay = day

	go cleanupOldLogs(h.dir, h.filename)
	return nil
}

func (h *fileHandler) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}

func cleanupOldLogs(dir, filename string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -logRetentionDays)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filename+".") {
			continue
		}
		day := strings.TrimPrefix(entry.Name(), filename+".")
		when, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		if when.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}

// multiHandler fans records out to every child handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, child := range h.handlers {
		if child.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, child := range h.handlers {
		if !child.Enabled(ctx, r.Level) {
			continue
		}
		if err := child.Handle(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *multiHandler) WithGroup(string) slog.Handler      { return h }

// Logger is the printf-style facade used across the server.
type Logger struct {
	slogger *slog.Logger
	files   *fileHandler
}

// New builds a logger writing to stdout and, when cfg.Dir is set, daily
// files under cfg.Dir.
func New(cfg Config) (*Logger, error) {
	level := ParseLevel(cfg.Level)

	handlers := []slog.Handler{
		&consoleHandler{writer: os.Stdout, level: level},
	}

	var files *fileHandler
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		filename := cfg.Filename
		if filename == "" {
			filename = "server.log"
		}
		files = &fileHandler{dir: cfg.Dir, filename: filename, level: level}
		handlers = append(handlers, files)
	}

	return &Logger{
		slogger: slog.New(&multiHandler{handlers: handlers}),
		files:   files,
	}, nil
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Slog exposes the structured logger for integrations that want it raw.
func (l *Logger) Slog() *slog.Logger {
	return l.slogger
}

// Close flushes and closes the file backend, if any.
func (l *Logger) Close() error {
	if l.files != nil {
		return l.files.close()
	}
	return nil
}

func (l *Logger) Debug(format string, args ...any) {
	l.slogger.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.slogger.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.slogger.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.slogger.Error(fmt.Sprintf(format, args...))
}

// Tagged variants prefix the message with a module tag the console handler
// knows how to colorize.

func (l *Logger) DebugTag(tag, format string, args ...any) {
	l.slogger.Debug(fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, args...)))
}

func (l *Logger) InfoTag(tag, format string, args ...any) {
	l.slogger.Info(fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, args...)))
}

func (l *Logger) WarnTag(tag, format string, args ...any) {
	l.slogger.Warn(fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, args...)))
}

func (l *Logger) ErrorTag(tag, format string, args ...any) {
	l.slogger.Error(fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, args...)))
}
