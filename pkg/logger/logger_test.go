package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry %q: %v", buf.String(), err)
	}
	return entry
}

func TestErrorCarriesScopedFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "event-worker", Level: zerolog.DebugLevel, Output: buf, Format: FormatJSON})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithTenant(ctx, "acme")
	ctx = log.WithEventID(ctx, 42)
	log.Error(ctx, "handler failed", errors.New("boom"))

	entry := decodeEntry(t, buf)
	want := map[string]any{
		"service":       "event-worker",
		"request_id":    "req-123",
		"tenant_schema": "acme",
		"event_id":      float64(42),
		"error":         "boom",
		"level":         "error",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Fatalf("expected %s=%v, entry=%v", k, v, entry)
		}
	}
	if _, ok := entry["stack"]; !ok {
		t.Fatalf("expected stack on error entry")
	}
}

func TestScopesDoNotLeakUpward(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: FormatJSON})

	parent := log.WithTenant(context.Background(), "acme")
	_ = log.WithFields(parent, map[string]any{"job": "event-cleanup", "batch": 3})
	log.Info(parent, "parent entry")

	entry := decodeEntry(t, buf)
	if _, ok := entry["job"]; ok {
		t.Fatalf("child field leaked into parent: %v", entry)
	}
	if entry["tenant_schema"] != "acme" {
		t.Fatalf("expected tenant on parent entry: %v", entry)
	}
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Output: buf, WarnStack: true, Format: FormatJSON}).Warn(context.Background(), "slow drain")
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	New(Options{ServiceName: "test", Output: buf, Format: FormatJSON}).Warn(context.Background(), "slow drain")
	if bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected no stack when warn stack disabled")
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: FormatJSON})
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug entry to be filtered, got %s", buf.String())
	}

	quiet := New(Options{ServiceName: "test", Level: zerolog.FatalLevel, Output: buf, Format: FormatJSON})
	quiet.Error(context.Background(), "hidden", errors.New("x"))
	if buf.Len() != 0 {
		t.Fatalf("expected error entry to be filtered, got %s", buf.String())
	}
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Output: buf, Format: "CONSOLE"}).Info(context.Background(), "ready")
	if bytes.HasPrefix(bytes.TrimSpace(buf.Bytes()), []byte("{")) {
		t.Fatalf("expected console output, got %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("ready")) {
		t.Fatalf("expected message in console output: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"invalid": zerolog.InfoLevel,
		" WARN ":  zerolog.WarnLevel,
		"debug":   zerolog.DebugLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
