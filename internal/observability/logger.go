package observability

import (
	"os"

	"github.com/danmuck/treesync/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger installs the process logger for app from runtime defaults plus
// TREESYNC_LOG_* overrides, and returns it for request middleware.
func InitLogger(app string, level string) zerolog.Logger {
	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	cfg.App = app
	if level != "" {
		cfg.Level = level
	}
	logging.ApplyEnvOverrides(&cfg)
	logger := logging.New(cfg, os.Stdout)
	log.Logger = logger
	zerolog.SetGlobalLevel(logging.ParseLevel(cfg.Level))
	return logger
}
