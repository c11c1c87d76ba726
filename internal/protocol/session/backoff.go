package session

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// Retry calls fn until it succeeds, ctx ends, or maxAttempts (when > 0) is spent,
// sleeping NextBackoffDelay between attempts. It returns fn's last error.
func Retry(ctx context.Context, cfg BackoffConfig, maxAttempts int, rng *rand.Rand, fn func(attempt int) error) error {
	var err error
	for attempt := 1; maxAttempts <= 0 || attempt <= maxAttempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if maxAttempts > 0 && attempt == maxAttempts {
			break
		}
		delay := NextBackoffDelay(cfg, attempt, rng)
		log.Debug().Msgf("session.Retry attempt=%d delay=%s err=%v", attempt, delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
