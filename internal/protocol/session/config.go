package session

import (
	"time"

	"github.com/danmuck/treesync/internal/protocol/frame"
)

// SecurityMode selects how strictly transport security is enforced.
type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration `toml:"initial_delay"`
	Multiplier   float64       `toml:"multiplier"`
	MaxDelay     time.Duration `toml:"max_delay"`
	Jitter       bool          `toml:"jitter"`
}

// TLSConfig names certificate material for TLS and mutual TLS.
type TLSConfig struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// Config defines session reliability and transport defaults.
type Config struct {
	HandshakeTimeout time.Duration `toml:"handshake_timeout"`
	WriteTimeout     time.Duration `toml:"write_timeout"`
	AckTimeout       time.Duration `toml:"ack_timeout"`
	InboxDepth       int           `toml:"inbox_depth"`
	AuthToken        string        `toml:"auth_token"`
	Limits           frame.Limits  `toml:"-"`
	Backoff          BackoffConfig `toml:"backoff"`
	SecurityMode     SecurityMode  `toml:"security_mode"`
	TLS              TLSConfig     `toml:"tls"`
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     15 * time.Second,
		AckTimeout:       20 * time.Second,
		InboxDepth:       256,
		Limits:           frame.DefaultLimits(),
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		SecurityMode: SecurityModeDevelopment,
	}
}
