package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestStandardLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(
		WithOutput(&buf),
		WithLevel(LevelDebug),
	)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	for _, want := range []string{
		"DEBUG debug message",
		"INFO info message",
		"WARN warn message",
		"ERROR error message",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q, got:\n%s", want, out)
		}
	}

	buf.Reset()
	logger.SetLevel(LevelError)
	logger.Debug("suppressed")
	logger.Info("suppressed")
	logger.Warn("suppressed")
	logger.Error("kept")
	out = buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("messages below LevelError leaked: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("error message missing at LevelError: %s", out)
	}

	if logger.GetLevel() != LevelError {
		t.Errorf("GetLevel() = %v, want LevelError", logger.GetLevel())
	}
}

func TestStandardLoggerFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf))

	logger.Info("decoded %d chunks in %s", 42, "0.0.region.bin")
	if !strings.Contains(buf.String(), "decoded 42 chunks in 0.0.region.bin") {
		t.Errorf("printf args not applied: %s", buf.String())
	}

	buf.Reset()
	logger.Info("literal %d stays")
	if !strings.Contains(buf.String(), "literal %d stays") {
		t.Errorf("message without args was reformatted: %s", buf.String())
	}
}

func TestStandardLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf))

	logger.WithFields(map[string]interface{}{
		"slot":   123,
		"region": "0.0",
	}).Info("with fields")

	line := buf.String()
	if !strings.HasSuffix(strings.TrimRight(line, "\n"), "with fields region=0.0 slot=123") {
		t.Errorf("fields not rendered sorted after the message: %q", line)
	}

	// Same key replaces the inherited value.
	buf.Reset()
	logger.WithField("slot", 1).WithField("slot", 2).Info("override")
	line = buf.String()
	if !strings.Contains(line, "slot=2") || strings.Contains(line, "slot=1") {
		t.Errorf("field override failed: %q", line)
	}

	// Parent logger stays field-free.
	buf.Reset()
	logger.Info("bare")
	if strings.Contains(buf.String(), "slot=") {
		t.Errorf("fields leaked into the parent logger: %q", buf.String())
	}
}

func TestStandardLoggerSharedLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf), WithLevel(LevelInfo))
	derived := logger.WithField("region", "0.0")

	derived.SetLevel(LevelError)
	logger.Info("suppressed everywhere")
	if buf.Len() != 0 {
		t.Errorf("SetLevel on a derived logger did not apply to the root: %q", buf.String())
	}

	logger.SetLevel(LevelInfo)
	derived.Info("visible again")
	if !strings.Contains(buf.String(), "visible again") {
		t.Errorf("SetLevel on the root did not apply to the derived logger: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		name    string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"Warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"", LevelInfo, false},
		{"  info  ", LevelInfo, false},
		{"verbose", LevelInfo, true},
	}

	for _, tc := range cases {
		got, err := ParseLevel(tc.name)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if LevelWarn.String() != "WARN" {
		t.Errorf("LevelWarn.String() = %q", LevelWarn.String())
	}
	if got := Level(99).String(); got != "LEVEL(99)" {
		t.Errorf("out-of-range level rendered %q", got)
	}
}

func TestGetDefaultLogger(t *testing.T) {
	if GetDefaultLogger() == nil {
		t.Fatal("GetDefaultLogger returned nil")
	}
	if GetDefaultLogger() != GetDefaultLogger() {
		t.Error("default logger is not a stable instance")
	}
}
