package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
)

func TestSetup(t *testing.T) {
	// Reset logger for testing
	logger = nil
	once = *new(sync.Once)

	var buf bytes.Buffer
	SetupWriter(&buf, "DEBUG")
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}

	Get().Debug("visible at debug")
	if buf.Len() == 0 {
		t.Error("expected debug output after SetupWriter(DEBUG)")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func captureJSON(t *testing.T, fn func()) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))
	fn()

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	return out
}

func TestContextHelpers(t *testing.T) {
	out := captureJSON(t, func() { WithComponent("dispatch").Info("hello") })
	if out["component"] != "dispatch" {
		t.Errorf("Expected component 'dispatch', got %v", out["component"])
	}
	if out["msg"] != "hello" {
		t.Errorf("Expected msg 'hello', got %v", out["msg"])
	}
}

func TestWithFeedback(t *testing.T) {
	out := captureJSON(t, func() { WithFeedback("thermometer").Info("fb msg") })
	if out["feedback"] != "thermometer" {
		t.Errorf("Expected feedback 'thermometer', got %v", out["feedback"])
	}
}

func TestWithSignal(t *testing.T) {
	out := captureJSON(t, func() { WithSignal("sig-123").Info("signal msg") })
	if out["signal_id"] != "sig-123" {
		t.Errorf("Expected signal_id 'sig-123', got %v", out["signal_id"])
	}
}
