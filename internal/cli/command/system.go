package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokvault-go/internal/cli/connection"
	"github.com/yndnr/tokvault-go/internal/cli/output"
	"github.com/yndnr/tokvault-go/internal/infra/buildinfo"
	"github.com/yndnr/tokvault-go/internal/server/httpserver/handler"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server status",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check server liveness",
				Action: probe("/health", "healthy"),
			},
			{
				Name:   "ready",
				Usage:  "Check server readiness (storage reachable)",
				Action: probe("/ready", "ready"),
			},
			{
				Name:   "version",
				Usage:  "Show client build information",
				Action: systemVersion,
			},
		},
	}
}

type probeResult struct {
	handler.ProbeResponse
	Target string `json:"target"`
}

// probe checks a server status endpoint that needs no API key.
func probe(path, want string) cli.ActionFunc {
	return func(c *cli.Context) error {
		client, err := EnsureConnected(c)
		if err != nil {
			return err
		}
		var result probeResult
		err = get(c, path, &result)
		result.Target = client.BaseURL()

		var apiErr *connection.APIError
		if errors.As(err, &apiErr) {
			result.Status = apiErr.Message
		} else if err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}

		if outputFormat(c) != output.FormatTable {
			if err := render(c, result); err != nil {
				return err
			}
		} else if result.Status == want {
			fmt.Fprintf(c.App.Writer, "✓ Server is %s\n  Target:  %s\n", want, result.Target)
			if result.Version != "" {
				fmt.Fprintf(c.App.Writer, "  Version: %s (up %s)\n", result.Version, result.Uptime)
			}
		} else {
			fmt.Fprintf(c.App.Writer, "✗ Server is not %s: %s\n", want, result.Status)
		}
		if result.Status != want {
			return cli.Exit("", 1)
		}
		return nil
	}
}

func systemVersion(c *cli.Context) error {
	info := buildinfo.Get()
	if outputFormat(c) != output.FormatTable {
		return render(c, info)
	}
	fmt.Fprintf(c.App.Writer, "tokvault-cli %s\n", buildinfo.String())
	return nil
}
