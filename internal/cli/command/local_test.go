package command

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/yndnr/tokvault-go/internal/cli/config"
	"github.com/yndnr/tokvault-go/internal/cli/connection"
)

// runLocal runs commands that never contact a server.
func runLocal(t *testing.T, cfgPath, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := App()
	app.Writer, app.ErrWriter = &out, &out
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"tokvault-cli", "--config", cfgPath}, args...))
	return out.String(), err
}

func TestAPIKeyGenerate(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "cli.yaml")
	out, err := runLocal(t, cfgPath, "", "apikey", "generate", "--name", "ci", "--role", "operator", "--allow", "10.0.0.0/8")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "tvak_") {
		t.Errorf("output has no key material:\n%s", out)
	}

	idx := strings.Index(out, "security:")
	if idx < 0 {
		t.Fatalf("output has no config snippet:\n%s", out)
	}
	var snippet struct {
		Security struct {
			APIKeys []keyEntry `yaml:"api_keys"`
		} `yaml:"security"`
	}
	body, _, _ := strings.Cut(out[idx:], "Save the secret")
	if err := yaml.Unmarshal([]byte(body), &snippet); err != nil {
		t.Fatalf("snippet is not YAML: %v", err)
	}
	if len(snippet.Security.APIKeys) != 1 {
		t.Fatalf("snippet keys = %d, want 1", len(snippet.Security.APIKeys))
	}
	k := snippet.Security.APIKeys[0]
	if k.Role != "operator" || !strings.HasPrefix(k.SecretHash, "$argon2id$") || k.Allowlist[0] != "10.0.0.0/8" {
		t.Errorf("entry = %+v", k)
	}

	if _, err := runLocal(t, cfgPath, "", "apikey", "generate", "--name", "x", "--role", "root"); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestAPIKeyHash(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "cli.yaml")
	out, err := runLocal(t, cfgPath, "tvak_secretvalue\n", "apikey", "hash")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "$argon2id$") {
		t.Errorf("hash = %q", out)
	}
	if _, err := runLocal(t, cfgPath, "\n", "apikey", "hash"); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestKeypairGenerateAndShow(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cli.yaml")
	keyPath := filepath.Join(dir, "id.json")

	out, err := runLocal(t, cfgPath, "", "keypair", "generate", keyPath)
	if err != nil {
		t.Fatal(err)
	}
	key, err := connection.LoadKeypair(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, key.PublicKey().String()) {
		t.Errorf("generate output %q does not name %s", out, key.PublicKey())
	}

	out, err = runLocal(t, cfgPath, "", "keypair", "show", keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != key.PublicKey().String() {
		t.Errorf("show = %q, want %s", out, key.PublicKey())
	}

	if _, err := runLocal(t, cfgPath, "", "keypair", "generate", keyPath); err == nil {
		t.Error("generate should not overwrite an existing keypair")
	}
}

func TestProfileLifecycle(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "cli.yaml")

	if _, err := runLocal(t, cfgPath, "", "--server", "vault:7080", "--api-key-id", "tvak_a", "--api-key", "tvak_s", "profile", "save", "--use", "prod"); err != nil {
		t.Fatal(err)
	}
	if _, err := runLocal(t, cfgPath, "", "--server", "localhost:7080", "profile", "save", "dev"); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config mode = %o, want 600", perm)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CurrentConnection != "prod" || cfg.Connections["prod"].Server != "vault:7080" {
		t.Errorf("cfg = %+v", cfg)
	}

	out, err := runLocal(t, cfgPath, "", "profile", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "prod") || !strings.Contains(out, "dev") {
		t.Errorf("list output:\n%s", out)
	}

	out, err = runLocal(t, cfgPath, "", "-o", "json", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "tvak_s") {
		t.Errorf("config show leaked the key secret:\n%s", out)
	}

	if _, err := runLocal(t, cfgPath, "", "profile", "use", "dev"); err != nil {
		t.Fatal(err)
	}
	if _, err := runLocal(t, cfgPath, "", "profile", "remove", "dev"); err != nil {
		t.Fatal(err)
	}
	cfg, err = config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Connections["dev"]; ok || cfg.CurrentConnection != "" {
		t.Errorf("after remove: %+v", cfg)
	}

	if _, err := runLocal(t, cfgPath, "", "profile", "use", "ghost"); err == nil {
		t.Error("expected error for unknown profile")
	}
	if _, err := runLocal(t, cfgPath, "", "profile", "save", "bad name"); err == nil {
		t.Error("expected error for invalid profile name")
	}
}

func TestConfigServer(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cli.yaml")

	good := filepath.Join(dir, "server.yaml")
	writeFile(t, good, `
storage:
  backend: memory
  postgres:
    dsn: "host=db user=vault password=hunter2"
custody:
  persist: false
security:
  disable_auth: true
`)
	out, err := runLocal(t, cfgPath, "", "config", "server", "validate", good)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "is valid") {
		t.Errorf("validate output = %q", out)
	}

	out, err = runLocal(t, cfgPath, "", "-o", "json", "config", "server", "show", good)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "hunter2") {
		t.Errorf("show leaked the database password:\n%s", out)
	}

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "storage:\n  backend: memory\ncustody:\n  persist: false\nsecurity:\n  disable_auth: true\nlog:\n  level: loud\n")
	if _, err := runLocal(t, cfgPath, "", "config", "server", "validate", bad); err == nil {
		t.Error("expected error for invalid log level")
	}
	if _, err := runLocal(t, cfgPath, "", "config", "server", "validate"); err == nil {
		t.Error("expected error without a file")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
