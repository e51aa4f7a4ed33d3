package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestInit_Formats(t *testing.T) {
	cases := []struct {
		format string
		want   []string
	}{
		{"text", []string{"level=INFO", "component=gateway", "msg=fallback"}},
		{"json", []string{`"level":"INFO"`, `"component":"gateway"`, `"msg":"fallback"`}},
		{"", []string{"level=INFO", "component=gateway"}},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		Init(slog.LevelInfo, tc.format, &buf)
		New("gateway").Info("fallback")
		for _, w := range tc.want {
			if !strings.Contains(buf.String(), w) {
				t.Errorf("format %q: missing %s in %s", tc.format, w, buf.String())
			}
		}
	}
}

func TestInit_DropsBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelWarn, "text", &buf)

	log := New("evidence")
	log.Info("search ok")
	log.Warn("search failed")

	if strings.Contains(buf.String(), "search ok") {
		t.Errorf("info line written at warn level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "search failed") {
		t.Errorf("warn line missing: %s", buf.String())
	}
}

func TestWithTrace(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, "text", &buf)

	WithTrace(New("orchestrate"), "trace-123").Info("run")
	out := buf.String()
	if !strings.Contains(out, "trace_id=trace-123") || !strings.Contains(out, "component=orchestrate") {
		t.Errorf("expected component and trace_id, got: %s", out)
	}

	buf.Reset()
	WithTrace(nil, "trace-456").Info("run")
	if !strings.Contains(buf.String(), "trace_id=trace-456") {
		t.Errorf("nil logger should use the default, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "": slog.LevelInfo, "warn": slog.LevelWarn, " warning ": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestDiscard(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelDebug, "text", &buf)
	Discard().Error("dropped")
	if buf.Len() != 0 {
		t.Errorf("discard logger wrote to the default handler: %s", buf.String())
	}
}
