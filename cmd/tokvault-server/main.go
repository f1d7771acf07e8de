package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokvault-go/internal/infra/buildinfo"
)

func main() {
	app := &cli.App{
		Name:    "tokvault-server",
		Usage:   "token custody and marketplace server",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the configuration file",
				EnvVars: []string{"TOKVAULT_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "override server.http.addr",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log.level",
			},
			&cli.BoolFlag{
				Name:  "check",
				Usage: "validate the configuration and exit",
			},
		},
		Action: func(c *cli.Context) error {
			overrides := map[string]any{}
			if v := c.String("addr"); v != "" {
				overrides["server.http.addr"] = v
			}
			if v := c.String("log-level"); v != "" {
				overrides["log.level"] = v
			}
			cfg, loader, err := loadConfig(c.String("config"), overrides)
			if err != nil {
				return err
			}
			if c.Bool("check") {
				fmt.Fprintln(c.App.Writer, "configuration is valid")
				return nil
			}
			return run(c.Context, cfg, loader)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
