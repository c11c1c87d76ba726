package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitThenValidate(t *testing.T) {
	dir := t.TempDir()
	langPath := filepath.Join(dir, "shapes.language.toml")
	if err := run(langPath, "language", false, false); err != nil {
		t.Fatalf("init language: %v", err)
	}
	cfgPath := filepath.Join(dir, "syncd.toml")
	if err := run(cfgPath, "syncd", false, false); err != nil {
		t.Fatalf("init syncd: %v", err)
	}
	raw, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	patched := strings.Replace(string(raw), `languages = ["shapes.language.toml"]`, `languages = ["`+filepath.ToSlash(langPath)+`"]`, 1)
	if err := os.WriteFile(cfgPath, []byte(patched), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := run(cfgPath, "", true, false); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := run(cfgPath, "syncd", false, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := run(filepath.Join(dir, "missing.toml"), "", true, false); err == nil {
		t.Fatalf("expected missing config error")
	}
}
