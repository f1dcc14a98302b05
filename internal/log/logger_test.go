package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/felixgeelhaar/cadence/internal/errors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
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
	if ParseFormat("JSON") != FormatJSON {
		t.Error("expected JSON format")
	}
	if ParseFormat("console") != FormatText {
		t.Error("unknown formats should fall back to text")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Format: FormatJSON, Output: &buf})

	logger.Component("queue").WithWorkflow("wf-1").Info("proposal applied", "ops", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}

	if entry["msg"] != "proposal applied" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["component"] != "queue" || entry["workflow"] != "wf-1" {
		t.Errorf("missing scoped attributes: %v", entry)
	}
	if entry["ops"] != float64(3) {
		t.Errorf("ops = %v", entry["ops"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatText, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn entry missing")
	}
}

func TestWithErrorCoded(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Format: FormatJSON, Output: &buf})

	err := fmt.Errorf("apply: %w", errors.New(errors.ErrCodeQueueCompleted, "SUB-001 is done").
		WithSuggestion("remove the operation"))
	logger.WithError(err).Error("apply failed")

	var entry map[string]any
	if jsonErr := json.Unmarshal(buf.Bytes(), &entry); jsonErr != nil {
		t.Fatalf("output is not JSON: %v", jsonErr)
	}
	if entry["error_code"] != string(errors.ErrCodeQueueCompleted) {
		t.Errorf("error_code = %v", entry["error_code"])
	}
	if _, ok := entry["suggestions"]; !ok {
		t.Error("suggestions missing")
	}
}

func TestWithErrorNil(t *testing.T) {
	logger := Discard()
	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestOrDefault(t *testing.T) {
	custom := Discard()
	if OrDefault(custom) != custom {
		t.Error("OrDefault should keep a non-nil logger")
	}
	if OrDefault(nil) == nil {
		t.Error("OrDefault(nil) should return the process default")
	}
}
