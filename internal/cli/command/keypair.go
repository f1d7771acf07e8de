package command

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokvault-go/internal/cli/connection"
)

// KeypairCommand returns the keypair subcommand group.
func KeypairCommand() *cli.Command {
	return &cli.Command{
		Name:  "keypair",
		Usage: "Manage caller keypairs",
		Subcommands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "Write a new ed25519 keypair in solana-keygen format",
				ArgsUsage: "FILE",
				Action:    keypairGenerate,
			},
			{
				Name:      "show",
				Usage:     "Print the identity of a keypair",
				ArgsUsage: "FILE",
				Action:    keypairShow,
			},
		},
	}
}

func keypairGenerate(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("output file required")
	}
	wallet := solana.NewWallet()
	if err := connection.SaveKeypair(path, wallet.PrivateKey); err != nil {
		return fmt.Errorf("write keypair: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\nIdentity: %s\n", path, wallet.PublicKey())
	return nil
}

func keypairShow(c *cli.Context) error {
	src := c.Args().First()
	if src == "" {
		src = c.String("keypair")
	}
	key, err := connection.LoadKeypair(src)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, key.PublicKey())
	return nil
}
