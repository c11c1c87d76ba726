package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/protocol/session"
	"github.com/danmuck/treesync/internal/testutil/testlog"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSyncdTemplate(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "syncd.toml")
	if err := WriteTemplate(path, "syncd", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "syncd", false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}

	cfg, err := LoadSyncdConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "syncd" || cfg.AdminAddr != "127.0.0.1:7400" || cfg.Format != "2024.1" {
		t.Fatalf("unexpected top level: %+v", cfg)
	}
	if cfg.Session.HandshakeTimeout != 5*time.Second || cfg.Session.Backoff.InitialDelay != 250*time.Millisecond {
		t.Fatalf("durations not decoded: %+v", cfg.Session)
	}
	if cfg.Session.Limits.MaxPayloadBytes == 0 {
		t.Fatalf("frame limits lost their defaults")
	}
	if len(cfg.Streams) != 2 {
		t.Fatalf("streams=%+v", cfg.Streams)
	}
	ws := cfg.Streams[1]
	if ws.Mode != ModeDial || ws.Transport != TransportWebSocket || !ws.ReceiveOnly {
		t.Fatalf("websocket stream=%+v", ws)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, t.TempDir(), "syncd.toml", `
languages = ["a.toml"]

[session]
ack_timeout = "1m"

[[streams]]
name = " geo "
mode = "LISTEN"
address = ":7401"
`)
	cfg, err := LoadSyncdConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := DefaultSyncdConfig()
	if cfg.Name != def.Name || cfg.JournalPath != def.JournalPath {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Session.AckTimeout != time.Minute || cfg.Session.HandshakeTimeout != def.Session.HandshakeTimeout {
		t.Fatalf("session=%+v", cfg.Session)
	}
	if s := cfg.Streams[0]; s.Name != "geo" || s.Mode != ModeListen || s.Transport != TransportTCP {
		t.Fatalf("stream not normalized: %+v", s)
	}
}

func TestEnvOverlay(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, t.TempDir(), "syncd.toml", `
languages = ["a.toml"]
participation_id = "from-file"
`)
	t.Setenv("TREESYNC_PARTICIPATION_ID", "from-env")
	t.Setenv("TREESYNC_ADMIN_ADDR", "0.0.0.0:9000")
	t.Setenv("TREESYNC_AUTH_TOKEN", "secret")
	t.Setenv("TREESYNC_SECURITY_MODE", "production")

	cfg, err := LoadSyncdConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ParticipationID != "from-env" || cfg.AdminAddr != "0.0.0.0:9000" {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
	if cfg.Session.AuthToken != "secret" || cfg.Session.SecurityMode != session.SecurityModeProduction {
		t.Fatalf("session overlay not applied: %+v", cfg.Session)
	}
}

func TestLoadSyncdConfigRejections(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"unknown key":      "languages = [\"a\"]\nbogus = 1\n",
		"no languages":     "name = \"x\"\n",
		"bad format":       "languages = [\"a\"]\nserialization_format = \"1999\"\n",
		"bad mode":         "languages = [\"a\"]\n[[streams]]\nname = \"s\"\nmode = \"both\"\naddress = \"x\"\n",
		"dial no address":  "languages = [\"a\"]\n[[streams]]\nname = \"s\"\nmode = \"dial\"\n",
		"ws not url":       "languages = [\"a\"]\n[[streams]]\nname = \"s\"\nmode = \"dial\"\ntransport = \"websocket\"\naddress = \"host:1\"\n",
		"duplicate stream": "languages = [\"a\"]\n[[streams]]\nname = \"s\"\nmode = \"listen\"\ntransport = \"websocket\"\n[[streams]]\nname = \"s\"\nmode = \"listen\"\ntransport = \"websocket\"\n",
		"security mode":    "languages = [\"a\"]\n[session]\nsecurity_mode = \"lax\"\n",
	}
	dir := t.TempDir()
	for name, body := range cases {
		path := writeFile(t, dir, "bad.toml", body)
		if _, err := LoadSyncdConfig(path); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
	if _, err := LoadSyncdConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadLanguageTemplate(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "shapes.toml")
	if err := WriteTemplate(path, "language", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	reg, err := LoadLanguages([]string{path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	geo, err := reg.Classifier(meta.Pointer{Language: "shapes", Version: "1", Key: "Geometry"})
	if err != nil || !geo.Partition {
		t.Fatalf("geometry=%v err=%v", geo, err)
	}
	shapes, ok := geo.Feature("Geometry-shapes")
	if !ok || shapes.Kind != meta.KindContainment || !shapes.Multiple {
		t.Fatalf("shapes feature=%+v", shapes)
	}
	circle, err := reg.Classifier(meta.Pointer{Language: "shapes", Version: "1", Key: "Circle"})
	if err != nil {
		t.Fatalf("circle: %v", err)
	}
	state, ok := circle.Feature("Circle-state")
	if !ok || state.Primitive != meta.PrimitiveEnum || state.Enum == nil || len(state.Enum.Literals) != 2 {
		t.Fatalf("state feature=%+v", state)
	}
	note, err := reg.Classifier(meta.Pointer{Language: "shapes", Version: "1", Key: "Note"})
	if err != nil || !note.Annotation {
		t.Fatalf("note=%v err=%v", note, err)
	}
}

func TestBuildLanguageRejections(t *testing.T) {
	testlog.Start(t)
	cases := map[string]LanguageFile{
		"no version": {Key: "x"},
		"both roles": {Key: "x", Version: "1", Classifiers: []ClassifierFile{{Key: "C", Partition: true, Annotation: true}}},
		"bad kind":   {Key: "x", Version: "1", Classifiers: []ClassifierFile{{Key: "C", Features: []FeatureFile{{Key: "f", Kind: "slot"}}}}},
		"bad type":   {Key: "x", Version: "1", Classifiers: []ClassifierFile{{Key: "C", Features: []FeatureFile{{Key: "f", Kind: "property", Type: "Color"}}}}},
		"empty enum": {Key: "x", Version: "1", Enumerations: []EnumerationFile{{Key: "E"}}},
	}
	for name, raw := range cases {
		if _, err := BuildLanguage(raw); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}

func TestTemplateUnknownKind(t *testing.T) {
	if _, err := Template("missing"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
