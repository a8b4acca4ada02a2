package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestNewLoggerWithWriterUsesEnvPrefix(t *testing.T) {
	withEnv(t, "REVERSE_LOG_PREFIX", "test-prefix ")
	withEnv(t, "REVERSE_LOG_LEVEL", "debug")

	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf)
	lg.Debug("hello")

	if !strings.Contains(buf.String(), "test-prefix") {
		t.Fatalf("log output = %q, want it to contain the configured prefix", buf.String())
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("log output = %q, want it to contain the message", buf.String())
	}
}

func TestNewLoggerWithWriterDefaultLevelDropsDebug(t *testing.T) {
	os.Unsetenv("REVERSE_LOG_LEVEL")

	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf)
	lg.Debug("should not appear")

	if strings.Contains(buf.String(), "should not appear") {
		t.Fatalf("default level should suppress debug output, got %q", buf.String())
	}
}

func TestNewLoggerWithWriterCloseIsNoopForNonCloser(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf)
	if err := lg.Close(); err != nil {
		t.Fatalf("Close() on a non-Closer writer = %v, want nil", err)
	}
}

func TestIsDebug(t *testing.T) {
	withEnv(t, "REVERSE_LOG_LEVEL", "debug")
	if !IsDebug() {
		t.Fatalf("IsDebug() = false, want true when REVERSE_LOG_LEVEL=debug")
	}

	withEnv(t, "REVERSE_LOG_LEVEL", "info")
	if IsDebug() {
		t.Fatalf("IsDebug() = true, want false when REVERSE_LOG_LEVEL=info")
	}
}
