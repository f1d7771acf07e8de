package command

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokvault-go/internal/cli/config"
	"github.com/yndnr/tokvault-go/internal/cli/connection"
	"github.com/yndnr/tokvault-go/internal/cli/output"
	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/infra/buildinfo"
)

const (
	metaConnMgr   = "connMgr"
	metaCLIConfig = "cliConfig"

	requestTimeout = 30 * time.Second
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "tokvault-cli",
		Usage:                "TokVault custody and marketplace client",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			ManagerCommand(),
			FeesCommand(),
			PaymentManagerCommand(),
			MintCommand(),
			MarketplaceCommand(),
			ListingCommand(),
			LedgerCommand(),
			SystemCommand(),
			APIKeyCommand(),
			KeypairCommand(),
			ProfileCommand(),
			ConfigCommand(),
		},
		Before: func(c *cli.Context) error {
			if _, err := output.ParseFormat(c.String("output")); err != nil {
				return err
			}
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if c.App.Metadata == nil {
				c.App.Metadata = make(map[string]any)
			}
			c.App.Metadata[metaCLIConfig] = cfg
			c.App.Metadata[metaConnMgr] = connection.NewManager()
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server address (e.g. 127.0.0.1:7080)",
			EnvVars: []string{"TOKVAULT_SERVER"},
		},
		&cli.StringFlag{
			Name:    "api-key-id",
			Aliases: []string{"k"},
			Usage:   "API key ID",
			EnvVars: []string{"TOKVAULT_API_KEY_ID"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Aliases: []string{"K"},
			Usage:   "API key secret",
			EnvVars: []string{"TOKVAULT_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "keypair",
			Usage:   "caller keypair file or base58 private key; requests are signed with it",
			EnvVars: []string{"TOKVAULT_KEYPAIR"},
		},
		&cli.StringFlag{
			Name:    "caller",
			Usage:   "unsigned caller identity, for servers without signature enforcement",
			EnvVars: []string{"TOKVAULT_CALLER"},
		},
		&cli.StringFlag{
			Name:    "ca-cert",
			Usage:   "PEM file of extra root CAs for https servers",
			EnvVars: []string{"TOKVAULT_CA_CERT"},
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "saved connection profile",
			EnvVars: []string{"TOKVAULT_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file",
			Value:   config.DefaultConfigPath(),
			EnvVars: []string{"TOKVAULT_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "print request details",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server   string
	APIKeyID string
	APIKey   string
	Keypair  string
	Caller   string
	CACert   string
	Profile  string

	Output  string
	Wide    bool
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:   c.String("server"),
		APIKeyID: c.String("api-key-id"),
		APIKey:   c.String("api-key"),
		Keypair:  c.String("keypair"),
		Caller:   c.String("caller"),
		CACert:   c.String("ca-cert"),
		Profile:  c.String("profile"),
		Output:   c.String("output"),
		Wide:     c.Bool("wide"),
		Verbose:  c.Bool("verbose"),
	}
}

// cliConfig returns the loaded CLI config, or defaults.
func cliConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[metaCLIConfig].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata[metaConnMgr].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

// resolveConnection merges the selected profile with explicit flags.
func resolveConnection(c *cli.Context) (*connection.Connection, error) {
	flags := ParseGlobalFlags(c)
	cfg := cliConfig(c)

	conn := &connection.Connection{Server: cfg.DefaultServer}
	name := flags.Profile
	if name == "" {
		name = cfg.CurrentConnection
	}
	if name != "" {
		p, ok := cfg.Connections[name]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q", name)
		}
		conn = &connection.Connection{
			Name:     name,
			Server:   p.Server,
			APIKeyID: p.APIKeyID,
			APIKey:   p.APIKey,
			Keypair:  p.Keypair,
			Caller:   p.Caller,
			CACert:   p.CACert,
		}
	}

	if flags.Server != "" {
		conn.Server = flags.Server
	}
	if flags.APIKeyID != "" {
		conn.APIKeyID = flags.APIKeyID
	}
	if flags.APIKey != "" {
		conn.APIKey = flags.APIKey
	}
	if flags.CACert != "" {
		conn.CACert = flags.CACert
	}
	if flags.Keypair != "" {
		conn.Keypair, conn.Caller = flags.Keypair, ""
	}
	if flags.Caller != "" {
		conn.Caller, conn.Keypair = flags.Caller, ""
	}
	return conn, nil
}

// EnsureConnected connects on first use and returns the HTTP client.
func EnsureConnected(c *cli.Context) (*connection.HTTPClient, error) {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return nil, fmt.Errorf("connection manager not initialized")
	}
	if mgr.IsConnected() {
		return mgr.Client()
	}
	conn, err := resolveConnection(c)
	if err != nil {
		return nil, err
	}
	if err := mgr.Connect(conn); err != nil {
		return nil, fmt.Errorf("connect failed: %w", err)
	}
	return mgr.Client()
}

// callerIdentity returns the acting identity or an error naming the flags
// that set it.
func callerIdentity(c *cli.Context) (solana.PublicKey, error) {
	if _, err := EnsureConnected(c); err != nil {
		return solana.PublicKey{}, err
	}
	pk, ok := GetConnectionManager(c).Caller()
	if !ok {
		return solana.PublicKey{}, fmt.Errorf("this command acts as an identity: pass --keypair or --caller")
	}
	return pk, nil
}

// requestContext bounds a single server call.
func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, requestTimeout)
}

// get fetches path into target.
func get(c *cli.Context, path string, target any) error {
	return call(c, http.MethodGet, path, nil, target)
}

// post sends body to path and decodes the reply into target.
func post(c *cli.Context, path string, body, target any) error {
	return call(c, http.MethodPost, path, body, target)
}

func call(c *cli.Context, method, path string, body, target any) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if ParseGlobalFlags(c).Verbose {
		fmt.Fprintf(c.App.ErrWriter, "> %s %s%s\n", method, client.BaseURL(), path)
	}
	var resp *http.Response
	if method == http.MethodGet {
		resp, err = client.Get(ctx, path)
	} else {
		resp, err = client.Post(ctx, path, body)
	}
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return connection.ParseResponse(resp, target)
}

// outputFormat resolves --output against the profile default.
func outputFormat(c *cli.Context) output.Format {
	if f := c.String("output"); f != "" {
		return output.Format(f)
	}
	if f, err := output.ParseFormat(cliConfig(c).DefaultOutput); err == nil {
		return f
	}
	return output.FormatTable
}

// render prints data in the selected format.
func render(c *cli.Context, data any) error {
	return output.NewFormatter(outputFormat(c), c.Bool("wide")).Format(c.App.Writer, data)
}

// argKey parses positional argument i as an identity.
func argKey(c *cli.Context, i int, name string) (solana.PublicKey, error) {
	raw := c.Args().Get(i)
	if raw == "" {
		return solana.PublicKey{}, fmt.Errorf("%s required", name)
	}
	return domain.ParseIdentity(name, raw)
}

// flagKey parses an identity flag; empty yields nil.
func flagKey(c *cli.Context, name string) (*solana.PublicKey, error) {
	raw := c.String(name)
	if raw == "" {
		return nil, nil
	}
	pk, err := domain.ParseIdentity(name, raw)
	if err != nil {
		return nil, err
	}
	return &pk, nil
}

// PrintError prints an error message to the app error writer.
func PrintError(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(c.App.ErrWriter, "error: "+format+"\n", args...)
}
