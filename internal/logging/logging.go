// Package logging configures colored structured logging with tint.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs a tint handler as the slog default at the given level name
// (debug, info, warn, error; anything else is info).
func Setup(level string) {
	SetupWithWriter(os.Stderr, ParseLevel(level))
}

// SetupWithWriter installs a tint handler writing to w.
func SetupWithWriter(w io.Writer, level slog.Level) {
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  level == slog.LevelDebug,
		}),
	))
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// StdLogger bridges libraries that want a *log.Logger (gorm) onto slog.
func StdLogger(level slog.Level) *log.Logger {
	return slog.NewLogLogger(slog.Default().Handler(), level)
}
