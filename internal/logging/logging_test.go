package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNewWithWriterJSONRedacts(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "info"}, &buf)
	log.Debug("hidden")
	log.Info("telegram connected", "app_hash", "deadbeef", "channels", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected debug line filtered, got %d lines", len(lines))
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["app_hash"] != "[REDACTED]" {
		t.Fatalf("expected app_hash redacted, got %v", payload["app_hash"])
	}
}

func TestNewWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "debug", Format: "text"}, &buf)
	log.Debug("range fallback", "msg_id", 7)
	if !strings.Contains(buf.String(), "msg_id=7") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestWriterSelectsSink(t *testing.T) {
	if Writer(Config{}) != os.Stdout {
		t.Fatal("expected stdout without file")
	}
	path := filepath.Join(t.TempDir(), "hub.log")
	w, ok := Writer(Config{File: path}).(*lumberjack.Logger)
	if !ok || w.Filename != path {
		t.Fatalf("expected lumberjack writer for %s", path)
	}
}

func TestLevelMapping(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"":        zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range cases {
		if got := zapLevel(parseLevel(in)); got != want {
			t.Fatalf("%q: got %v, want %v", in, got, want)
		}
	}
	if parseLevel("bogus") != slog.LevelInfo {
		t.Fatal("unknown level should default to info")
	}
}

func TestNewZapWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	lg := NewZap(Config{Level: "warn"}, &buf)
	lg.Info("dropped")
	lg.Warn("flood wait")
	_ = lg.Sync()
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "flood wait") {
		t.Fatalf("unexpected zap output %q", out)
	}
}
