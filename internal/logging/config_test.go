package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"garbage": zerolog.InfoLevel,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", raw, got, want)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogJSON, "true")
	cfg := DefaultConfig(ProfileTest)
	ApplyEnvOverrides(&cfg)
	if cfg.Level != "error" || !cfg.JSON {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Timestamp {
		t.Fatalf("unset env var changed default timestamp")
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{JSON: true, App: "syncd"}, &buf)
	logger.Info().Str("stream", "s1").Msg("hello")
	out := buf.String()
	if !strings.Contains(out, `"app":"syncd"`) || !strings.Contains(out, `"stream":"s1"`) {
		t.Fatalf("unexpected log line: %s", out)
	}
}
