package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// newBufferLogger returns a JSON logger writing into a buffer.
func newBufferLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l, &buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "text", "console", ""} {
		l, err := New(Config{Level: "info", Format: format})
		if err != nil || l == nil {
			t.Errorf("New(format=%q) = %v, %v", format, l, err)
		}
	}
}

func TestLogger_Levels(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	tests := []struct {
		level   string
		logFunc func(string, ...any)
	}{
		{"DEBUG", l.Debug},
		{"INFO", l.Info},
		{"WARN", l.Warn},
		{"ERROR", l.Error},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("conn accepted", "remote", "127.0.0.1:5000")

			entry := decodeEntry(t, buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if entry["msg"] != "conn accepted" || entry["remote"] != "127.0.0.1:5000" {
				t.Errorf("unexpected entry: %v", entry)
			}
		})
	}
}

func TestLogger_WithAndSlog(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.With("component", "fileserver").WithContext(context.Background()).Info("listening")
	if entry := decodeEntry(t, buf); entry["component"] != "fileserver" {
		t.Errorf("component = %v, want fileserver", entry["component"])
	}

	buf.Reset()
	l.Slog().Info("via slog", "password", "hunter2")
	if entry := decodeEntry(t, buf); entry["password"] != redactedValue {
		t.Errorf("slog view must share redaction, got password = %v", entry["password"])
	}
}

func TestSetLevel(t *testing.T) {
	l, buf := newBufferLogger(t, "error")
	defer SetLevel("info")

	l.Info("filtered")
	if buf.Len() > 0 {
		t.Error("info should be filtered at error level")
	}

	SetLevel("debug")
	l.Info("visible")
	if buf.Len() == 0 {
		t.Error("info should be logged after level changed to debug")
	}
	if got := GetLevel(); got != "debug" {
		t.Errorf("GetLevel() = %q, want debug", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	for _, ok := range []string{"debug", "INFO", "warn", "warning", "error"} {
		if !ValidLevel(ok) {
			t.Errorf("ValidLevel(%q) = false", ok)
		}
	}
	for _, bad := range []string{"", "trace", "fatal"} {
		if ValidLevel(bad) {
			t.Errorf("ValidLevel(%q) = true", bad)
		}
	}
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	l, buf := newBufferLogger(t, "debug")
	SetDefault(l)

	for name, fn := range map[string]func(string, ...any){
		"Debug": Debug, "Info": Info, "Warn": Warn, "Error": Error,
	} {
		buf.Reset()
		fn("package level")
		if buf.Len() == 0 {
			t.Errorf("%s() produced no output", name)
		}
	}

	buf.Reset()
	slog.Info("std default")
	if !strings.Contains(buf.String(), "std default") {
		t.Error("SetDefault should install the slog default too")
	}
}
