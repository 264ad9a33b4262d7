package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	LOG_LEVEL_ERROR   = "ERROR"
	LOG_LEVEL_WARNING = "WARNING"
	LOG_LEVEL_INFO    = "INFO"
	LOG_LEVEL_DEBUG   = "DEBUG"
)

type Config struct {
	Level string `mapstructure:"level"`
}

// ParseLevel maps a configured level name onto slog, defaulting to info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToUpper(logLevel) {
	case LOG_LEVEL_ERROR:
		return slog.LevelError
	case LOG_LEVEL_WARNING:
		return slog.LevelWarn
	case LOG_LEVEL_DEBUG:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func IsDebug(logLevel string) bool {
	return strings.ToUpper(logLevel) == LOG_LEVEL_DEBUG
}

// Init installs a text handler on stdout as the process default logger.
func Init(logLevel string) {
	slog.SetDefault(New(os.Stdout, logLevel))
}

func New(w io.Writer, logLevel string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
