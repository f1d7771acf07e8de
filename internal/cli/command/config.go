package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokvault-go/internal/infra/confloader"
	servercfg "github.com/yndnr/tokvault-go/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect CLI and server configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective CLI configuration",
				Action: configShow,
			},
			{
				Name:  "server",
				Usage: "Work with server configuration files",
				Subcommands: []*cli.Command{
					{
						Name:      "validate",
						Usage:     "Check a server configuration file",
						ArgsUsage: "FILE",
						Action:    configServerValidate,
					},
					{
						Name:      "show",
						Usage:     "Print a server configuration merged over defaults, secrets masked",
						ArgsUsage: "FILE",
						Action:    configServerShow,
					},
				},
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg := *cliConfig(c)
	conns := make(map[string]any, len(cfg.Connections))
	for name, p := range cfg.Connections {
		if p.APIKey != "" {
			p.APIKey = "***"
		}
		conns[name] = p
	}
	return render(c, map[string]any{
		"default_server":     cfg.DefaultServer,
		"default_output":     cfg.DefaultOutput,
		"current_connection": cfg.CurrentConnection,
		"connections":        conns,
	})
}

// loadServerConfig merges path and TOKVAULT_ variables over the defaults.
func loadServerConfig(path string) (*servercfg.ServerConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration file path required")
	}
	cfg := servercfg.Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configServerValidate(c *cli.Context) error {
	cfg, err := loadServerConfig(c.Args().First())
	if err != nil {
		return err
	}
	if err := servercfg.Verify(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Configuration %s is valid.\n", c.Args().First())
	return nil
}

func configServerShow(c *cli.Context) error {
	cfg, err := loadServerConfig(c.Args().First())
	if err != nil {
		return err
	}
	return render(c, servercfg.Sanitize(cfg))
}
