package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level represents the severity of a log message
type Level int

const (
	// LevelDebug is for detailed debugging information
	LevelDebug Level = iota
	// LevelInfo is for general informational messages
	LevelInfo
	// LevelWarn is for warning messages that indicate potential issues
	LevelWarn
	// LevelError is for error messages that indicate failures
	LevelError
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ToSlogLevel converts our Level to slog.Level
func (l Level) ToSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses a level name. Unknown names are an error so that typos in
// configuration files are caught at startup.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Format represents the output format for logs
type Format int

const (
	// FormatText outputs logs in human-readable text format
	FormatText Format = iota
	// FormatJSON outputs logs in JSON format
	FormatJSON
)

// String returns the string representation of the format
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat parses a format name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text", "console", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q", s)
	}
}

// Config holds configuration for the logger
type Config struct {
	// Level is the minimum log level to output
	Level Level

	// Format is the output format (JSON or Text)
	Format Format

	// Output is where logs should be written; nil means stderr
	Output io.Writer

	// AddSource includes source file and line number in logs
	AddSource bool

	// ServiceName is attached to every record as "service"
	ServiceName string
}

// DefaultConfig logs at INFO level as text to stderr. Stdout is reserved for
// command output.
func DefaultConfig() Config {
	return Config{
		Level:       LevelInfo,
		Format:      FormatText,
		Output:      os.Stderr,
		ServiceName: "orchestra",
	}
}

// DevelopmentConfig logs at DEBUG level with source locations
func DevelopmentConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = LevelDebug
	cfg.AddSource = true
	return cfg
}
