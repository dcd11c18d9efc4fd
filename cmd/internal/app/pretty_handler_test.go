package app

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPrettyHandler_NoColorRender(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	log := slog.New(h)

	log.Info("http.request", "method", "get", "path", "/healthz", "status", 200, "duration_ms", 3)

	out := buf.String()
	for _, want := range []string{
		"lvl=[INFO]",
		"msg=http.request",
		"method=GET",
		"path=/healthz",
		"status=200",
		"duration=3ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("no-color output contains ANSI escapes:\n%s", out)
	}
}

func TestPrettyHandler_ColorOutput(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	h := newPrettyHandler(&buf, nil, true)
	log := slog.New(h)

	log.Error("boom", "status", 500)

	out := buf.String()
	if !strings.Contains(out, ansiRed) {
		t.Fatalf("error line should carry red escapes:\n%q", out)
	}
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info must be filtered at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error must pass at warn level")
	}
}

func TestPrettyHandler_AttrsAndGroups(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	log := slog.New(h).With("service", "chord").WithGroup("db")

	log.Info("pool.ready", "conns", 4)

	out := buf.String()
	if !strings.Contains(out, "service=chord") {
		t.Errorf("missing bound attr: %s", out)
	}
	if !strings.Contains(out, "db.conns=4") {
		t.Errorf("missing grouped attr: %s", out)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "", want: `""`},
		{in: "has space", want: `"has space"`},
		{in: `k=v`, want: `"k=v"`},
	}

	for _, tt := range tests {
		if got := quoteIfNeeded(tt.in); got != tt.want {
			t.Errorf("quoteIfNeeded(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestColorizeStatusCode(t *testing.T) {
	t.Parallel()

	if got := colorizeStatusCode(200, false); got != "200" {
		t.Fatalf("no-color 200 = %q", got)
	}
	if got := colorizeStatusCode(503, true); !strings.HasPrefix(got, ansiRed) {
		t.Fatalf("5xx should be red, got %q", got)
	}
	if got := colorizeStatusCode(404, true); !strings.HasPrefix(got, ansiYellow) {
		t.Fatalf("4xx should be yellow, got %q", got)
	}
}

func TestValueToInt64(t *testing.T) {
	t.Parallel()

	if n, ok := valueToInt64(slog.IntValue(7)); !ok || n != 7 {
		t.Fatalf("int: got (%d, %v)", n, ok)
	}
	if n, ok := valueToInt64(slog.Float64Value(12.9)); !ok || n != 12 {
		t.Fatalf("float: got (%d, %v)", n, ok)
	}
	if _, ok := valueToInt64(slog.StringValue("200")); ok {
		t.Fatalf("string must not convert")
	}
	if _, ok := valueToInt64(slog.DurationValue(time.Second)); ok {
		t.Fatalf("duration must not convert")
	}
}
