package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/appcuatri/backend/pkg/contextkeys"
)

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("email", "ana@example.com").Info("user registered")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "user registered" {
		t.Errorf("msg = %v, want user registered", entry["msg"])
	}
	if entry["email"] != "ana@example.com" {
		t.Errorf("email = %v, want ana@example.com", entry["email"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("debug/info output leaked through warn level: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn output missing: %s", out)
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithFields(map[string]interface{}{
		"user_id": 42,
		"method":  "POST",
	}).Info("request handled")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["user_id"] != float64(42) {
		t.Errorf("user_id = %v, want 42", entry["user_id"])
	}
	if entry["method"] != "POST" {
		t.Errorf("method = %v, want POST", entry["method"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"Warn":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
		"":        InfoLevel,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = contextkeys.WithRequestID(ctx, "req-123")

	FromContext(ctx).Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["request_id"] != "req-123" {
		t.Errorf("request_id = %v, want req-123", entry["request_id"])
	}
}

func TestFromContextFallback(t *testing.T) {
	// Missing logger must not panic.
	logger := FromContext(context.Background())
	if logger == nil {
		t.Fatal("expected fallback logger, got nil")
	}
}
