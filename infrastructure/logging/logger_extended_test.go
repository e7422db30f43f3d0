package logging

import (
	"bytes"
	"context"
	"os"
	"testing"
)

func TestNewFromEnv(t *testing.T) {
	savedLevel := os.Getenv("LOG_LEVEL")
	savedFormat := os.Getenv("LOG_FORMAT")
	defer func() {
		if savedLevel != "" {
			os.Setenv("LOG_LEVEL", savedLevel)
		} else {
			os.Unsetenv("LOG_LEVEL")
		}
		if savedFormat != "" {
			os.Setenv("LOG_FORMAT", savedFormat)
		} else {
			os.Unsetenv("LOG_FORMAT")
		}
	}()

	t.Run("defaults when env not set", func(t *testing.T) {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("LOG_FORMAT")

		logger := NewFromEnv("mixerd")
		if logger == nil {
			t.Fatal("NewFromEnv() returned nil")
		}
	})

	t.Run("custom level and format", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "debug")
		os.Setenv("LOG_FORMAT", "text")

		logger := NewFromEnv("mixerd")
		if logger == nil {
			t.Fatal("NewFromEnv() returned nil")
		}
	})

	t.Run("whitespace trimmed", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "  warn  ")
		os.Setenv("LOG_FORMAT", "  json  ")

		logger := NewFromEnv("mixerd")
		if logger == nil {
			t.Fatal("NewFromEnv() returned nil")
		}
	})
}

// TestLogHopTransferCarriesTraceAcrossHops exercises the correlation this
// package exists for: two hops of the same mixing operation share a trace ID
// so an operator can reconstruct the whole route from the log stream.
func TestLogHopTransferCarriesTraceAcrossHops(t *testing.T) {
	logger := New("mixer", "info", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	ctx := WithTraceID(context.Background(), "route-42")

	logger.LogHopTransfer(ctx, 0, "source", "intermediate-1", 1_000_000, "sig-0", nil)
	logger.LogHopTransfer(ctx, 1, "intermediate-1", "destination", 990_000, "sig-1", nil)

	output := buf.String()
	if bytes.Count(buf.Bytes(), []byte("route-42")) != 2 {
		t.Errorf("expected trace_id route-42 on both hop log lines, got: %s", output)
	}
}
