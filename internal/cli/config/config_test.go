package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DefaultServer != "http://127.0.0.1:7080" {
		t.Errorf("DefaultServer = %q", cfg.DefaultServer)
	}
	if cfg.DefaultOutput != "table" {
		t.Errorf("DefaultOutput = %q, want table", cfg.DefaultOutput)
	}
	if cfg.Connections == nil || len(cfg.Connections) != 0 {
		t.Error("Connections should be empty and non-nil")
	}
	if _, _, ok := cfg.Current(); ok {
		t.Error("Default() should have no current profile")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if !filepath.IsAbs(path) {
		t.Errorf("path %q should be absolute", path)
	}
	if !strings.HasSuffix(path, filepath.Join(".tokvault", "cli.yaml")) {
		t.Errorf("path = %q", path)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load should not error for a missing file: %v", err)
	}
	if cfg.DefaultServer != Default().DefaultServer {
		t.Error("missing file should yield defaults")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cli.yaml")
	cfg := Default()
	cfg.DefaultOutput = "json"
	cfg.Connections["prod"] = ConnectionConfig{
		Server:   "https://vault.example.com",
		APIKeyID: "tvak_abc",
		APIKey:   "tvak_secret",
		Keypair:  "/home/op/id.json",
	}
	cfg.Connections["dev"] = ConnectionConfig{Server: "localhost:7080", Caller: "11111111111111111111111111111112"}
	cfg.CurrentConnection = "prod"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultOutput != "json" || len(loaded.Connections) != 2 {
		t.Errorf("loaded = %+v", loaded)
	}
	name, conn, ok := loaded.Current()
	if !ok || name != "prod" || conn != cfg.Connections["prod"] {
		t.Errorf("Current() = %q, %+v, %v", name, conn, ok)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("connections: [unclosed"), 0o600)
	if _, err := Load(bad); err == nil {
		t.Error("Load should fail on invalid YAML")
	}

	dangling := filepath.Join(dir, "dangling.yaml")
	os.WriteFile(dangling, []byte("current_connection: ghost\n"), 0o600)
	if _, err := Load(dangling); err == nil {
		t.Error("Load should fail when the current profile is undefined")
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"prod", "dev-1", "my_vault"} {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v", name, err)
		}
	}
	for _, name := range []string{"", "a.b", "has space", strings.Repeat("x", 65)} {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) should fail", name)
		}
	}

	cfg := Default()
	cfg.Connections["a.b"] = ConnectionConfig{Server: "x"}
	if err := Save(cfg, filepath.Join(t.TempDir(), "cli.yaml")); err == nil {
		t.Error("Save should reject invalid profile names")
	}
}
