package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/felixgeelhaar/orchestra/internal/errors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "debug", want: LevelDebug},
		{in: "INFO", want: LevelInfo},
		{in: "", want: LevelInfo},
		{in: "warning", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "verbose", want: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat("console"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(console) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func newJSONLogger(buf *bytes.Buffer, level Level) *Logger {
	return New(Config{
		Level:       level,
		Format:      FormatJSON,
		Output:      buf,
		ServiceName: "orchestra",
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, LevelInfo)

	logger.With("feature_id", "F1").Info("run started", "items", 4)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}

	if entry["msg"] != "run started" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
	if entry["feature_id"] != "F1" {
		t.Errorf("expected feature_id attribute, got %v", entry["feature_id"])
	}
	if entry["service"] != "orchestra" {
		t.Errorf("expected service attribute, got %v", entry["service"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn output, got %q", buf.String())
	}
}

func TestWithErrorAddsCode(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, LevelInfo)

	err := fmt.Errorf("resume: %w", errors.New(errors.ErrCodeNothingToResume, "nothing").WithSuggestion("recover"))
	logger.WithError(err).Error("resume failed")

	var entry map[string]any
	if jsonErr := json.Unmarshal(buf.Bytes(), &entry); jsonErr != nil {
		t.Fatalf("failed to parse log output: %v", jsonErr)
	}

	if entry["error_code"] != string(errors.ErrCodeNothingToResume) {
		t.Errorf("expected error_code, got %v", entry["error_code"])
	}
	if _, ok := entry["suggestions"]; !ok {
		t.Error("expected suggestions attribute")
	}
}

func TestWithErrorNil(t *testing.T) {
	logger := Nop()
	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestDefaultLogger(t *testing.T) {
	original := defaultLogger
	defer func() { defaultLogger = original }()

	defaultLogger = nil
	first := DefaultLogger()
	if first == nil {
		t.Fatal("expected lazily created logger")
	}
	if DefaultLogger() != first {
		t.Error("DefaultLogger should return the same instance")
	}

	custom := Nop()
	SetDefaultLogger(custom)
	if OrDefault(nil) != custom {
		t.Error("OrDefault(nil) should return the default logger")
	}
	other := Development()
	if OrDefault(other) != other {
		t.Error("OrDefault should prefer the given logger")
	}
}
