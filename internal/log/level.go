package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// The level ladder, from most to least verbose. LevelTTY and LevelNone sit
// above every message level: with LevelTTY nothing is printed as a regular
// line but every message still drives the in-place progress line, and with
// LevelNone nothing is written at all.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelTTY   = slog.Level(12)
	LevelNone  = slog.Level(16)
)

// ParseLevel converts a configuration value into a level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "tty", "tty_only", "tty-only":
		return LevelTTY, nil
	case "none", "no_logs", "off":
		return LevelNone, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want trace, debug, info, warn, error, tty or none)", s)
	}
}

// LevelName returns the configuration spelling of a level.
func LevelName(l slog.Level) string {
	switch {
	case l >= LevelNone:
		return "none"
	case l >= LevelTTY:
		return "tty"
	case l >= LevelError:
		return "error"
	case l >= LevelWarn:
		return "warn"
	case l >= LevelInfo:
		return "info"
	case l >= LevelDebug:
		return "debug"
	default:
		return "trace"
	}
}

// levelLetter is the one-letter tag printed in each line header.
func levelLetter(l slog.Level) string {
	switch {
	case l >= LevelTTY:
		return "T"
	case l >= LevelError:
		return "E"
	case l >= LevelWarn:
		return "W"
	case l >= LevelInfo:
		return "I"
	case l >= LevelDebug:
		return "D"
	default:
		return "T"
	}
}
