package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLogLevelString(t *testing.T) {
	cases := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tc := range cases {
		if got := tc.level.String(); got != tc.expected {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tc.level, got, tc.expected)
		}
	}
}

func TestCLIModeWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelDebug, &buf)

	Info("TestSub", "hello %s", "world")

	out := buf.String()
	if !strings.Contains(out, "hello world") {
		t.Errorf("expected output to contain message, got %q", out)
	}
	if !strings.Contains(out, "subsystem=TestSub") {
		t.Errorf("expected output to contain subsystem attribute, got %q", out)
	}
}

func TestCLIModeFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelWarn, &buf)

	Debug("TestSub", "too quiet")
	Info("TestSub", "still too quiet")

	if buf.Len() != 0 {
		t.Errorf("expected no output below filter level, got %q", buf.String())
	}

	Error("TestSub", errors.New("boom"), "loud")
	if !strings.Contains(buf.String(), "error=boom") {
		t.Errorf("expected error attribute in output, got %q", buf.String())
	}
}

func TestUIModeDeliversOnChannel(t *testing.T) {
	ch := InitForUI()
	defer CloseUIChannel()

	Warn("Credential", "token near expiry for %s", "github")

	select {
	case entry := <-ch:
		if entry.Level != LevelWarn {
			t.Errorf("expected level WARN, got %s", entry.Level)
		}
		if entry.Subsystem != "Credential" {
			t.Errorf("expected subsystem Credential, got %s", entry.Subsystem)
		}
		if entry.Message != "token near expiry for github" {
			t.Errorf("unexpected message: %q", entry.Message)
		}
	default:
		t.Fatal("expected a log entry on the UI channel")
	}
}
