package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"WARN", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"invalid", InfoLevel}, // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestJSONLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	logger.Debug("acquiring connection", Factory("primary"), RefCount(2))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry: %v", err)
	}

	if entry.Level != "DEBUG" {
		t.Errorf("Expected level DEBUG, got %s", entry.Level)
	}
	if entry.Message != "acquiring connection" {
		t.Errorf("Unexpected message: %s", entry.Message)
	}
	if entry.Fields["factory"] != "primary" {
		t.Errorf("Expected factory field 'primary', got %v", entry.Fields["factory"])
	}
	if entry.Fields["ref_count"] != float64(2) {
		t.Errorf("Expected ref_count 2, got %v", entry.Fields["ref_count"])
	}
}

func TestJSONLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Error("Log output contains filtered messages")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("Log output missing warn message")
	}
}

func TestJSONLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	child := logger.With(Component("datasource"))
	child.Info("released connection")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry: %v", err)
	}

	if entry.Fields["component"] != "datasource" {
		t.Errorf("Expected component field from With, got %v", entry.Fields)
	}
}

func TestFieldConstructors(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		f := Error(errors.New("boom"))
		if f.Key != "error" || f.Value != "boom" {
			t.Errorf("Unexpected error field: %+v", f)
		}
	})

	t.Run("ErrorNil", func(t *testing.T) {
		f := Error(nil)
		if f.Key != "error" || f.Value != nil {
			t.Errorf("Unexpected nil error field: %+v", f)
		}
	})

	t.Run("Duration", func(t *testing.T) {
		f := Latency(250 * time.Millisecond)
		if f.Key != "latency" || f.Value != "250ms" {
			t.Errorf("Unexpected latency field: %+v", f)
		}
	})

	t.Run("Phase", func(t *testing.T) {
		f := Phase("before_commit")
		if f.Key != "phase" || f.Value != "before_commit" {
			t.Errorf("Unexpected phase field: %+v", f)
		}
	})
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()

	// Must not panic and must discard everything
	logger.Debug("a")
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")

	if logger.With(String("k", "v")) == nil {
		t.Error("With should return a logger")
	}
}
