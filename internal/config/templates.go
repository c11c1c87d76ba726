package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "syncd":
		return syncdTemplate, nil
	case "language":
		return languageTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const syncdTemplate = `name = "syncd"
admin_addr = "127.0.0.1:7400"
cors_origins = ["http://localhost:3000"]
journal = "treesync.db"
serialization_format = "2024.1"
languages = ["shapes.language.toml"]

[session]
handshake_timeout = "5s"
write_timeout = "15s"
ack_timeout = "20s"
inbox_depth = 256
security_mode = "development"

[session.backoff]
initial_delay = "250ms"
multiplier = 2.0
max_delay = "5s"
jitter = true

[[streams]]
name = "geometry"
mode = "listen"
transport = "tcp"
address = "127.0.0.1:7401"
seed = "geometry.chunk.json"

[[streams]]
name = "drawings"
mode = "dial"
transport = "websocket"
address = "ws://127.0.0.1:7500/v1/streams/drawings/sync"
receive_only = true
`

const languageTemplate = `key = "shapes"
version = "1"
name = "Shapes"

[[enumerations]]
key = "MatterState"
name = "MatterState"
literals = [
  { key = "MatterState-solid", name = "solid" },
  { key = "MatterState-liquid", name = "liquid" },
]

[[classifiers]]
key = "Geometry"
name = "Geometry"
partition = true
features = [
  { key = "Geometry-shapes", name = "shapes", kind = "containment", multiple = true },
  { key = "Geometry-favorites", name = "favorites", kind = "reference", multiple = true },
]

[[classifiers]]
key = "Circle"
name = "Circle"
features = [
  { key = "Circle-name", name = "name", kind = "property", type = "string" },
  { key = "Circle-r", name = "r", kind = "property", type = "integer" },
  { key = "Circle-state", name = "state", kind = "property", type = "MatterState" },
]

[[classifiers]]
key = "Note"
name = "Note"
annotation = true
features = [
  { key = "Note-text", name = "text", kind = "property", type = "string" },
]
`
