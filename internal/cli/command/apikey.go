package command

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"go.yaml.in/yaml/v3"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

// APIKeyCommand returns the apikey subcommand group. Keys are generated
// locally; the server reads them from security.api_keys.
func APIKeyCommand() *cli.Command {
	return &cli.Command{
		Name:    "apikey",
		Aliases: []string{"key"},
		Usage:   "Generate API keys for the server configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Create a key and print its config entry",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "key name"},
					&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Required: true, Usage: "viewer, operator or admin"},
					&cli.IntFlag{Name: "rate-limit", Value: domain.DefaultRateLimit, Usage: "requests per second"},
					&cli.StringSliceFlag{Name: "allow", Usage: "allowed client IP or CIDR (repeatable)"},
				},
				Action: apikeyGenerate,
			},
			{
				Name:   "hash",
				Usage:  "Hash a secret read from stdin",
				Action: apikeyHash,
			},
		},
	}
}

// keyEntry mirrors one security.api_keys item of the server config.
type keyEntry struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	SecretHash string   `yaml:"secret_hash"`
	Role       string   `yaml:"role"`
	RateLimit  int      `yaml:"rate_limit"`
	Allowlist  []string `yaml:"allowlist,omitempty"`
}

func apikeyGenerate(c *cli.Context) error {
	role := c.String("role")
	if !domain.IsValidRole(role) {
		return fmt.Errorf("invalid role %q (want viewer, operator or admin)", role)
	}
	rate := c.Int("rate-limit")
	if rate < 0 || rate > domain.MaxRateLimit {
		return fmt.Errorf("--rate-limit must be between 0 and %d", domain.MaxRateLimit)
	}

	key, secret, err := domain.NewAPIKey(c.String("name"), domain.Role(role))
	if err != nil {
		return err
	}

	entry := keyEntry{
		ID:         key.KeyID,
		Name:       key.Name,
		SecretHash: key.SecretHash,
		Role:       string(key.Role),
		RateLimit:  rate,
		Allowlist:  c.StringSlice("allow"),
	}
	snippet, err := yaml.Marshal(map[string]any{
		"security": map[string]any{"api_keys": []keyEntry{entry}},
	})
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Key ID:     %s\n", key.KeyID)
	fmt.Fprintf(w, "Key secret: %s\n\n", secret)
	fmt.Fprintf(w, "Add to the server configuration:\n\n%s\n", snippet)
	fmt.Fprintln(w, "Save the secret now - only its hash is stored.")
	return nil
}

func apikeyHash(c *cli.Context) error {
	reader := bufio.NewReader(c.App.Reader)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return fmt.Errorf("empty secret")
	}
	hash, err := domain.HashAPIKeySecret(secret)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hash)
	return nil
}
