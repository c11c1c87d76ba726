package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/danmuck/treesync/internal/chunk"
	"github.com/danmuck/treesync/internal/protocol/session"
)

var ErrInvalid = errors.New("config: invalid")

// Stream connection modes.
const (
	ModeListen = "listen"
	ModeDial   = "dial"
)

// Stream transports.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

type SyncdConfig struct {
	Name            string         `toml:"name"`
	ParticipationID string         `toml:"participation_id"`
	AdminAddr       string         `toml:"admin_addr"`
	CorsOrigins     []string       `toml:"cors_origins"`
	JournalPath     string         `toml:"journal"`
	Format          string         `toml:"serialization_format"`
	Languages       []string       `toml:"languages"`
	Session         session.Config `toml:"session"`
	Streams         []StreamConfig `toml:"streams"`
}

// StreamConfig describes one replicated stream and how its peer connects.
// A websocket listener is served by the admin server at /v1/streams/<name>/sync.
type StreamConfig struct {
	Name        string `toml:"name"`
	Mode        string `toml:"mode"`
	Transport   string `toml:"transport"`
	Address     string `toml:"address"`
	Seed        string `toml:"seed"`
	ReceiveOnly bool   `toml:"receive_only"`
	MaxAttempts int    `toml:"max_connect_attempts"`
}

// Env is the TREESYNC_* overlay applied after the file.
type Env struct {
	ParticipationID string `env:"TREESYNC_PARTICIPATION_ID"`
	AdminAddr       string `env:"TREESYNC_ADMIN_ADDR"`
	JournalPath     string `env:"TREESYNC_JOURNAL"`
	AuthToken       string `env:"TREESYNC_AUTH_TOKEN"`
	SecurityMode    string `env:"TREESYNC_SECURITY_MODE"`
}

func DefaultSyncdConfig() SyncdConfig {
	return SyncdConfig{
		Name:        "syncd",
		AdminAddr:   "127.0.0.1:7400",
		CorsOrigins: []string{"http://localhost:3000"},
		JournalPath: "treesync.db",
		Format:      chunk.Version2024,
		Session:     session.DefaultConfig(),
	}
}

// LoadSyncdConfig reads path over the defaults, applies the env overlay and validates.
func LoadSyncdConfig(path string) (SyncdConfig, error) {
	cfg := DefaultSyncdConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return SyncdConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return SyncdConfig{}, fmt.Errorf("%w: unknown keys in %s: %v", ErrInvalid, path, undecoded)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return SyncdConfig{}, err
	}
	normalize(&cfg)
	if err := ValidateSyncdConfig(cfg); err != nil {
		return SyncdConfig{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays set TREESYNC_* variables onto cfg.
func ApplyEnv(cfg *SyncdConfig) error {
	var e Env
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if v := strings.TrimSpace(e.ParticipationID); v != "" {
		cfg.ParticipationID = v
	}
	if v := strings.TrimSpace(e.AdminAddr); v != "" {
		cfg.AdminAddr = v
	}
	if v := strings.TrimSpace(e.JournalPath); v != "" {
		cfg.JournalPath = v
	}
	if e.AuthToken != "" {
		cfg.Session.AuthToken = e.AuthToken
	}
	if v := strings.TrimSpace(e.SecurityMode); v != "" {
		cfg.Session.SecurityMode = session.SecurityMode(v)
	}
	return nil
}

func normalize(cfg *SyncdConfig) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.AdminAddr = strings.TrimSpace(cfg.AdminAddr)
	for i := range cfg.Streams {
		s := &cfg.Streams[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Mode = strings.ToLower(strings.TrimSpace(s.Mode))
		s.Transport = strings.ToLower(strings.TrimSpace(s.Transport))
		s.Address = strings.TrimSpace(s.Address)
		if s.Transport == "" {
			s.Transport = TransportTCP
		}
	}
}

func ValidateSyncdConfig(cfg SyncdConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalid)
	}
	if cfg.AdminAddr == "" {
		return fmt.Errorf("%w: missing admin_addr", ErrInvalid)
	}
	if _, err := chunk.CodecFor(cfg.Format); err != nil {
		return fmt.Errorf("%w: serialization_format: %v", ErrInvalid, err)
	}
	if len(cfg.Languages) == 0 {
		return fmt.Errorf("%w: at least one language file is required", ErrInvalid)
	}
	seen := map[string]bool{}
	for i, s := range cfg.Streams {
		if err := ValidateStream(s); err != nil {
			return fmt.Errorf("%w: stream[%d]: %v", ErrInvalid, i, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: stream[%d]: duplicate name %q", ErrInvalid, i, s.Name)
		}
		seen[s.Name] = true
	}
	switch cfg.Session.SecurityMode {
	case session.SecurityModeDevelopment, session.SecurityModeProduction:
	default:
		return fmt.Errorf("%w: unknown security_mode %q", ErrInvalid, cfg.Session.SecurityMode)
	}
	return nil
}

func ValidateStream(s StreamConfig) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch s.Transport {
	case TransportTCP, TransportWebSocket:
	default:
		return fmt.Errorf("unknown transport %q", s.Transport)
	}
	switch s.Mode {
	case ModeDial:
		if s.Address == "" {
			return fmt.Errorf("address is required to dial")
		}
		if s.Transport == TransportWebSocket && !strings.HasPrefix(s.Address, "ws://") && !strings.HasPrefix(s.Address, "wss://") {
			return fmt.Errorf("websocket address must be a ws:// or wss:// url")
		}
	case ModeListen:
		if s.Transport == TransportTCP && s.Address == "" {
			return fmt.Errorf("address is required to listen on tcp")
		}
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	if s.MaxAttempts < 0 {
		return fmt.Errorf("max_connect_attempts must be >= 0")
	}
	return nil
}
