// Package log reproduces the structured, key-value logging call
// convention observed throughout the teacher (log.Info("msg", "k", v,
// ...), log.Error(...), log.Crit(...)). The teacher's own logger has no
// importable module path once split off from go-ethereum, so its shape is
// rebuilt here on top of log/slog with the same handler choices
// go-ethereum offers: a colorized console writer and a rotating file
// writer.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

var root = slog.New(newConsoleHandler(os.Stderr))

// SetOutputFile redirects the root logger to a rotating JSON file; from
// then on the console handler no longer receives log lines.
func SetOutputFile(path string, maxSizeMB, maxBackups, maxAgeDays int) {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	root = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{}))
}

// consoleHandler renders level-colored, human-readable lines like
// go-ethereum's terminal logger (time level msg k=v k=v).
type consoleHandler struct {
	w       io.Writer
	colored bool
}

func newConsoleHandler(w io.Writer) *consoleHandler {
	colored := false
	if f, ok := w.(*os.File); ok {
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &consoleHandler{w: colorable.NewColorable(os.Stderr), colored: colored}
}

func (h *consoleHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	lvl := levelString(r.Level)
	if h.colored {
		lvl = levelColor(r.Level)(lvl)
	}
	line := fmt.Sprintf("%s[%s] %s", r.Time.Format("01-02|15:04:05.000"), lvl, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value.Any())
		return true
	})
	_, err := fmt.Fprintln(h.w, line)
	return err
}

func (h *consoleHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *consoleHandler) WithGroup(string) slog.Handler      { return h }

func levelString(l slog.Level) string {
	switch {
	case l <= slog.LevelDebug-4:
		return "TRACE"
	case l <= slog.LevelDebug:
		return "DEBUG"
	case l <= slog.LevelInfo:
		return "INFO "
	case l <= slog.LevelWarn:
		return "WARN "
	case l <= slog.LevelError:
		return "ERROR"
	default:
		return "CRIT "
	}
}

func levelColor(l slog.Level) func(string, ...interface{}) string {
	switch {
	case l <= slog.LevelDebug:
		return color.New(color.FgBlue).SprintfFunc()
	case l <= slog.LevelInfo:
		return color.New(color.FgGreen).SprintfFunc()
	case l <= slog.LevelWarn:
		return color.New(color.FgYellow).SprintfFunc()
	default:
		return color.New(color.FgRed).SprintfFunc()
	}
}

func attrs(kv []interface{}) []any {
	out := make([]any, len(kv))
	for i, v := range kv {
		out[i] = v
	}
	return out
}

// Trace logs at trace level (below debug), matching the teacher's
// log.Trace calls seen throughout miner/worker.go.
func Trace(msg string, kv ...interface{}) {
	root.Log(context.Background(), slog.LevelDebug-4, msg, attrs(kv)...)
}

// Debug logs at debug level.
func Debug(msg string, kv ...interface{}) {
	root.Debug(msg, attrs(kv)...)
}

// Info logs at info level.
func Info(msg string, kv ...interface{}) {
	root.Info(msg, attrs(kv)...)
}

// Warn logs at warn level.
func Warn(msg string, kv ...interface{}) {
	root.Warn(msg, attrs(kv)...)
}

// Error logs at error level.
func Error(msg string, kv ...interface{}) {
	root.Error(msg, attrs(kv)...)
}

// Crit logs at critical level. Unlike go-ethereum's log.Crit this does not
// exit the process: the orchestrator treats "critical" log lines as a
// severity marker for InvariantViolation errors (spec.md §7), not a
// process-abort trigger, since a single failing task must never take down
// the whole scheduler.
func Crit(msg string, kv ...interface{}) {
	root.Log(context.Background(), slog.LevelError+4, msg, attrs(kv)...)
}
