package util

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger at the requested level.
func NewLogger(level string) zerolog.Logger {
	return NewLoggerWithFile(level, "")
}

// NewLoggerWithFile additionally appends every entry to a log file when path is non-empty.
// A file that cannot be opened is skipped rather than fatal; stdout logging always works.
func NewLoggerWithFile(level, path string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var w io.Writer = os.Stdout
	if path != "" {
		if f, ferr := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); ferr == nil {
			w = zerolog.MultiLevelWriter(os.Stdout, f)
		}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}
