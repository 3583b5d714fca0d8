package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitOnce(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var first, second bytes.Buffer
	log := Init(Options{Level: "debug", Output: &first})
	Init(Options{Level: "error", Output: &second})

	log.Debug().Msg("hello")
	again := Get()
	again.Info().Msg("again")

	if !strings.Contains(first.String(), "hello") || !strings.Contains(first.String(), "again") {
		t.Fatalf("expected both lines in first writer, got %q", first.String())
	}
	if second.Len() != 0 {
		t.Fatalf("second Init should be ignored, got %q", second.String())
	}
}

func TestGetBeforeInit(t *testing.T) {
	Reset()
	log := Get()
	log.Error().Msg("dropped")
}
