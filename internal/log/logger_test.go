package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentAssembler, Handler: slog.NewTextHandler(&buf, nil)})
	l.InfoContext(context.Background(), "Loaded period", FieldSourceID, "42")

	out := buf.String()
	if !strings.Contains(out, "component=assembler") || !strings.Contains(out, "source_id=42") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger: %+v", l)
	}

	custom := New(Config{Component: ComponentHTTP, Handler: slog.NewTextHandler(&bytes.Buffer{}, nil)})
	if got := FromContext(WithLogger(context.Background(), custom)); got != custom {
		t.Fatal("expected the stored logger")
	}
}
