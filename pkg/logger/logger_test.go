package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	return line
}

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
	if Named("test") == nil {
		t.Fatal("named logger is nil")
	}
	Named("test").Info(context.Background(), "test message", String("k", "v"))
}

func TestLoggerFormats(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatJSON); err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}
	Named("scoring").Info(ctx, "fleet scored", Int("objects", 3), Float64("anomalous_pct", 33.3))

	line := decodeLine(t, &buf)
	if line["msg"] != "fleet scored" || line["logger"] != "scoring" || line["objects"] != float64(3) {
		t.Errorf("unexpected log line: %v", line)
	}
	if src, _ := line["source"].(string); !strings.Contains(src, "logger_test.go") {
		t.Errorf("expected source to point at the test file, got %v", line["source"])
	}
	if _, ok := line["requestID"]; ok {
		t.Errorf("requestID set without one in the context: %v", line)
	}

	buf.Reset()
	if err := InitWithWriter(&buf, FormatTint); err != nil {
		t.Fatalf("failed to initialize tint logger: %v", err)
	}
	Get().Warn(ctx, "low battery", String("id", "WB-8432"))
	if !strings.Contains(buf.String(), "low battery") || !strings.Contains(buf.String(), "WB-8432") {
		t.Errorf("unexpected tint output: %q", buf.String())
	}

	if err := InitWithWriter(&buf, "xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestLoggerRequestID(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatJSON); err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-42")
	if got := RequestID(ctx); got != "req-42" {
		t.Fatalf("RequestID() = %q, want req-42", got)
	}
	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("RequestID() on a bare context = %q, want empty", got)
	}

	Get().Error(ctx, "profile failed")
	if line := decodeLine(t, &buf); line["requestID"] != "req-42" {
		t.Errorf("expected requestID on the record, got %v", line)
	}
}

func TestLoggerLevels(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatText); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	Get().Debug(ctx, "hidden")
	if buf.Len() != 0 {
		t.Errorf("debug line written at info level: %q", buf.String())
	}

	if err := SetLevelString("DEBUG"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Get().Debug(ctx, "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected debug line, got %q", buf.String())
	}

	if err := SetLevelString(" Warning "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buf.Reset()
	Get().Info(ctx, "quiet")
	if buf.Len() != 0 {
		t.Errorf("info line written at warn level: %q", buf.String())
	}

	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected an error for an unknown level")
	}
	SetLevel(slog.LevelInfo)
}
