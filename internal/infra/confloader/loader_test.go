package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Server struct {
		HTTP struct {
			Addr         string        `koanf:"addr"`
			ReadTimeout  time.Duration `koanf:"read_timeout"`
			MaxBodyBytes int64         `koanf:"max_body_bytes"`
		} `koanf:"http"`
	} `koanf:"server"`
	Storage struct {
		Backend string `koanf:"backend"`
		DataDir string `koanf:"data_dir"`
	} `koanf:"storage"`
	Crank struct {
		Enabled bool `koanf:"enabled"`
	} `koanf:"crank"`
}

func defaults() testConfig {
	var c testConfig
	c.Server.HTTP.Addr = "127.0.0.1:7080"
	c.Server.HTTP.ReadTimeout = 10 * time.Second
	c.Storage.Backend = "badger"
	c.Crank.Enabled = true
	return c
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
	if l.IsLoaded() {
		t.Error("new loader should not be loaded")
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/etc/tokvault/config.yaml"))
	if l.envPrefix != "TEST_" || l.FilePath() != "/etc/tokvault/config.yaml" {
		t.Errorf("options not applied: prefix=%q file=%q", l.envPrefix, l.FilePath())
	}
}

func TestLoader_KeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: /srv/tokvault
`)
	cfg := defaults()
	l := NewLoader(WithConfigFile(path), WithEnvPrefix("TVTEST_KEEP_"))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.DataDir != "/srv/tokvault" {
		t.Errorf("DataDir = %q, want /srv/tokvault", cfg.Storage.DataDir)
	}
	if cfg.Server.HTTP.Addr != "127.0.0.1:7080" {
		t.Errorf("Addr = %q, want default kept", cfg.Server.HTTP.Addr)
	}
	if !cfg.Crank.Enabled {
		t.Error("crank.enabled default should be kept")
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() = false after Load")
	}
}

func TestLoader_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  http:
    addr: "0.0.0.0:7443"
    read_timeout: 3s
    max_body_bytes: 2048
crank:
  enabled: false
`)
	cfg := defaults()
	if err := NewLoader(WithConfigFile(path), WithEnvPrefix("TVTEST_FILE_")).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTP.Addr != "0.0.0.0:7443" {
		t.Errorf("Addr = %q", cfg.Server.HTTP.Addr)
	}
	if cfg.Server.HTTP.ReadTimeout != 3*time.Second {
		t.Errorf("ReadTimeout = %v, want 3s", cfg.Server.HTTP.ReadTimeout)
	}
	if cfg.Server.HTTP.MaxBodyBytes != 2048 {
		t.Errorf("MaxBodyBytes = %d, want 2048", cfg.Server.HTTP.MaxBodyBytes)
	}
	if cfg.Crank.Enabled {
		t.Error("crank.enabled should be false")
	}
}

func TestLoader_FileNotFound(t *testing.T) {
	cfg := defaults()
	err := NewLoader(WithConfigFile("/nonexistent/tokvault.yaml")).Load(&cfg)
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	cfg := defaults()
	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err == nil {
		t.Fatal("Load() should fail for invalid YAML")
	}
}

func TestLoader_EnvNesting(t *testing.T) {
	t.Setenv("TVTEST_ENV_STORAGE__DATA_DIR", "/env/data")
	t.Setenv("TVTEST_ENV_SERVER__HTTP__ADDR", "10.0.0.1:7080")

	cfg := defaults()
	l := NewLoader(WithEnvPrefix("TVTEST_ENV_"))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("DataDir = %q, want /env/data", cfg.Storage.DataDir)
	}
	if cfg.Server.HTTP.Addr != "10.0.0.1:7080" {
		t.Errorf("Addr = %q, want 10.0.0.1:7080", cfg.Server.HTTP.Addr)
	}
	if got := l.String("storage.data_dir"); got != "/env/data" {
		t.Errorf("String(storage.data_dir) = %q", got)
	}
}

func TestLoader_Priority(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: postgres
  data_dir: /file
`)
	t.Setenv("TVTEST_PRIO_STORAGE__DATA_DIR", "/env")

	cfg := defaults()
	l := NewLoader(
		WithConfigFile(path),
		WithEnvPrefix("TVTEST_PRIO_"),
		WithOverrides(map[string]any{"storage.backend": "memory"}),
	)
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.DataDir != "/env" {
		t.Errorf("DataDir = %q, env should win over file", cfg.Storage.DataDir)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %q, overrides should win", cfg.Storage.Backend)
	}
}

func TestLoader_Keys(t *testing.T) {
	path := writeConfig(t, "crank:\n  enabled: true\n")
	cfg := defaults()
	l := NewLoader(WithConfigFile(path), WithEnvPrefix("TVTEST_KEYS_"))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	keys := l.Keys()
	if len(keys) != 1 || keys[0] != "crank.enabled" {
		t.Errorf("Keys() = %v, want [crank.enabled]", keys)
	}
}

func TestMapProvider(t *testing.T) {
	m, err := mapProvider{"a.b.c": 1, "a.d": "x", "e": true}.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	a, ok := m["a"].(map[string]any)
	if !ok {
		t.Fatalf("a = %T, want map", m["a"])
	}
	if a["d"] != "x" {
		t.Errorf("a.d = %v", a["d"])
	}
	if b, ok := a["b"].(map[string]any); !ok || b["c"] != 1 {
		t.Errorf("a.b = %v", a["b"])
	}
	if m["e"] != true {
		t.Errorf("e = %v", m["e"])
	}
	if _, err := (mapProvider{}).ReadBytes(); err == nil {
		t.Error("ReadBytes() should fail")
	}
}
