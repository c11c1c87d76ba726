// Package testlog configures zerolog for package tests.
package testlog

import (
	"testing"
	"time"

	"github.com/danmuck/treesync/internal/logging"
	"github.com/rs/zerolog/log"
)

// Start configures test logging and brackets t with start and finish lines.
func Start(t testing.TB) {
	t.Helper()
	logging.ConfigureTests()
	began := time.Now()
	log.Info().Msgf("testlog.Start test=%s", t.Name())
	t.Cleanup(func() {
		log.Info().Msgf("testlog.Done test=%s failed=%t elapsed=%s", t.Name(), t.Failed(), time.Since(began))
	})
}
