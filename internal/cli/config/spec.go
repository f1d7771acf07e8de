package config

// CLIConfig is the configuration for tokvault-cli.
type CLIConfig struct {
	DefaultServer string `koanf:"default_server" yaml:"default_server"`
	DefaultOutput string `koanf:"default_output" yaml:"default_output"`

	// Connections are saved profiles by name.
	Connections map[string]ConnectionConfig `koanf:"connections" yaml:"connections"`

	// CurrentConnection names the profile used when --profile is absent.
	CurrentConnection string `koanf:"current_connection" yaml:"current_connection,omitempty"`
}

// ConnectionConfig stores saved connection details.
type ConnectionConfig struct {
	Server   string `koanf:"server" yaml:"server"`
	APIKeyID string `koanf:"api_key_id" yaml:"api_key_id,omitempty"`
	APIKey   string `koanf:"api_key" yaml:"api_key,omitempty"`
	// Keypair is a path to a solana-keygen file.
	Keypair string `koanf:"keypair" yaml:"keypair,omitempty"`
	// Caller is an unsigned identity for servers without signatures.
	Caller string `koanf:"caller" yaml:"caller,omitempty"`
	// CACert is a PEM file of extra trusted roots.
	CACert string `koanf:"ca_cert" yaml:"ca_cert,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DefaultServer: "http://127.0.0.1:7080",
		DefaultOutput: "table",
		Connections:   make(map[string]ConnectionConfig),
	}
}

// Current returns the active profile, if one is selected.
func (c *CLIConfig) Current() (string, ConnectionConfig, bool) {
	if c.CurrentConnection == "" {
		return "", ConnectionConfig{}, false
	}
	conn, ok := c.Connections[c.CurrentConnection]
	return c.CurrentConnection, conn, ok
}
