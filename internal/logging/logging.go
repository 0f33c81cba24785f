// Package logging sets up structured logging with colored terminal output
// (via tint) and a runtime-adjustable level.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Level is the global log level shared by every handler created here.
var Level = new(slog.LevelVar) // default: INFO

// Setup parses level, applies it and installs the default slog logger on
// stderr.
func Setup(level string) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}
	SetLevel(l)
	slog.SetDefault(slog.New(NewHandler(os.Stderr, IsTerminal(os.Stderr))))
	return nil
}

// NewHandler returns a tint handler when color is set and a JSON handler
// otherwise. Both honour Level.
func NewHandler(w io.Writer, color bool) slog.Handler {
	if color {
		return tint.NewHandler(w, &tint.Options{
			Level:      Level,
			TimeFormat: time.TimeOnly,
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: Level,
	})
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetLevel changes the global log level.
func SetLevel(l slog.Level) {
	Level.Set(l)
}

// GetLevel returns the current global log level.
func GetLevel() slog.Level {
	return Level.Level()
}

// ParseLevel converts "debug", "info", "warn" or "error" (any case) to a
// slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.ToUpper(s)))
	return l, err
}
