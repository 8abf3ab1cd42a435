package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{" warning ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter("info", "json", &buf).Info("decoded", "group", "numbers")
		if !strings.Contains(buf.String(), `"msg":"decoded"`) || !strings.Contains(buf.String(), `"group":"numbers"`) {
			t.Errorf("expected JSON record, got: %s", buf.String())
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter("info", "TEXT", &buf).Info("decoded", "group", "numbers")
		if !strings.Contains(buf.String(), "msg=decoded") || !strings.Contains(buf.String(), "group=numbers") {
			t.Errorf("expected text record, got: %s", buf.String())
		}
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter("warn", "json", &buf)
		log.Info("dropped")
		if buf.Len() != 0 {
			t.Errorf("expected info to be filtered at warn, got: %s", buf.String())
		}
	})
}

func TestDiscard(t *testing.T) {
	log := Discard()
	if log.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard() logger is enabled at error level")
	}
}
