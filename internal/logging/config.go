package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "TREESYNC_LOG_LEVEL"
	EnvLogTimestamp = "TREESYNC_LOG_TIMESTAMP"
	EnvLogNoColor   = "TREESYNC_LOG_NOCOLOR"
	EnvLogJSON      = "TREESYNC_LOG_JSON"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved logger setup for one process.
type Config struct {
	Level     string `env:"TREESYNC_LOG_LEVEL"`
	Timestamp bool   `env:"TREESYNC_LOG_TIMESTAMP"`
	NoColor   bool   `env:"TREESYNC_LOG_NOCOLOR"`
	JSON      bool   `env:"TREESYNC_LOG_JSON"`
	App       string
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := DefaultConfig(profile)
		ApplyEnvOverrides(&cfg)
		log.Logger = New(cfg, os.Stderr)
		zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	})
}

// DefaultConfig returns profile defaults before env overrides.
func DefaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: "debug", Timestamp: false, App: "test"}
	default:
		return Config{Level: "info", Timestamp: true, App: "treesync"}
	}
}

// ApplyEnvOverrides overlays TREESYNC_LOG_* variables onto cfg. Unset variables keep defaults.
func ApplyEnvOverrides(cfg *Config) {
	if err := env.Parse(cfg); err != nil {
		log.Warn().Err(err).Msg("logging.ApplyEnvOverrides ignored invalid env")
	}
}

// New builds a logger writing to out.
func New(cfg Config, out io.Writer) zerolog.Logger {
	var w io.Writer = out
	if !cfg.JSON {
		w = zerolog.ConsoleWriter{Out: out, NoColor: cfg.NoColor, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(w).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.App != "" {
		ctx = ctx.Str("app", cfg.App)
	}
	return ctx.Logger()
}

// ParseLevel maps a level name to a zerolog level; unknown names fall back to info.
func ParseLevel(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace", "diagnostics":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "", "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
