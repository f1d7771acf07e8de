package command

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokvault-go/internal/cli/config"
)

// ProfileCommand returns the profile subcommand group.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Save and select connection profiles",
		Subcommands: []*cli.Command{
			{
				Name:      "save",
				Usage:     "Save the current connection flags as a profile",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "use", Usage: "also make it the current profile"},
				},
				Action: profileSave,
			},
			{
				Name:      "use",
				Usage:     "Make a profile current",
				ArgsUsage: "NAME",
				Action:    profileUse,
			},
			{
				Name:   "list",
				Usage:  "List profiles",
				Action: profileList,
			},
			{
				Name:      "remove",
				Usage:     "Delete a profile",
				ArgsUsage: "NAME",
				Action:    profileRemove,
			},
		},
	}
}

func profileSave(c *cli.Context) error {
	name := c.Args().First()
	if err := config.ValidateName(name); err != nil {
		return err
	}
	conn, err := resolveConnection(c)
	if err != nil {
		return err
	}
	cfg := cliConfig(c)
	cfg.Connections[name] = config.ConnectionConfig{
		Server:   conn.Server,
		APIKeyID: conn.APIKeyID,
		APIKey:   conn.APIKey,
		Keypair:  conn.Keypair,
		Caller:   conn.Caller,
		CACert:   conn.CACert,
	}
	if c.Bool("use") {
		cfg.CurrentConnection = name
	}
	if err := config.Save(cfg, c.String("config")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Profile %s saved.\n", name)
	return nil
}

func profileUse(c *cli.Context) error {
	name := c.Args().First()
	cfg := cliConfig(c)
	if _, ok := cfg.Connections[name]; !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	cfg.CurrentConnection = name
	if err := config.Save(cfg, c.String("config")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Using profile %s.\n", name)
	return nil
}

type profileRow struct {
	Current  string `json:"current"`
	Name     string `json:"name"`
	Server   string `json:"server"`
	APIKeyID string `json:"api_key_id"`
	Identity string `json:"identity"`
}

func profileList(c *cli.Context) error {
	cfg := cliConfig(c)
	names := make([]string, 0, len(cfg.Connections))
	for name := range cfg.Connections {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]profileRow, 0, len(names))
	for _, name := range names {
		p := cfg.Connections[name]
		row := profileRow{Name: name, Server: p.Server, APIKeyID: p.APIKeyID, Identity: p.Caller}
		if p.Keypair != "" {
			row.Identity = "keypair:" + p.Keypair
		}
		if name == cfg.CurrentConnection {
			row.Current = "*"
		}
		rows = append(rows, row)
	}
	return render(c, rows)
}

func profileRemove(c *cli.Context) error {
	name := c.Args().First()
	cfg := cliConfig(c)
	if _, ok := cfg.Connections[name]; !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	delete(cfg.Connections, name)
	if cfg.CurrentConnection == name {
		cfg.CurrentConnection = ""
	}
	if err := config.Save(cfg, c.String("config")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Profile %s removed.\n", name)
	return nil
}
