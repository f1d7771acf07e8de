package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokvault-go/internal/custody/ledger"
	"github.com/yndnr/tokvault-go/internal/server/httpserver/handler"
)

// LedgerCommand returns the ledger subcommand group.
func LedgerCommand() *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "Inspect and fund custody ledger accounts",
		Subcommands: []*cli.Command{
			{
				Name:      "balance",
				Usage:     "Show an account",
				ArgsUsage: "MINT OWNER",
				Action:    ledgerBalance,
			},
			{
				Name:      "mint",
				Usage:     "Credit an account (admin)",
				ArgsUsage: "MINT OWNER",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "amount", Required: true, Usage: "units to credit"},
				},
				Action: ledgerMint,
			},
			{
				Name:      "mint-authority",
				Usage:     "Grant or revoke delegated mint authority (admin)",
				ArgsUsage: "MINT",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "revoke", Usage: "revoke instead of grant"},
				},
				Action: ledgerMintAuthority,
			},
		},
	}
}

func ledgerBalance(c *cli.Context) error {
	mint, err := argKey(c, 0, "mint")
	if err != nil {
		return err
	}
	owner, err := argKey(c, 1, "owner")
	if err != nil {
		return err
	}
	var acct ledger.Account
	if err := get(c, "/v1/ledger/"+mint.String()+"/"+owner.String(), &acct); err != nil {
		return err
	}
	return render(c, &acct)
}

func ledgerMint(c *cli.Context) error {
	mint, err := argKey(c, 0, "mint")
	if err != nil {
		return err
	}
	owner, err := argKey(c, 1, "owner")
	if err != nil {
		return err
	}
	var acct ledger.Account
	req := handler.MintRequest{Mint: mint, Owner: owner, Amount: c.Uint64("amount")}
	if err := post(c, "/admin/v1/ledger/mint", req, &acct); err != nil {
		return err
	}
	return render(c, &acct)
}

func ledgerMintAuthority(c *cli.Context) error {
	mint, err := argKey(c, 0, "mint")
	if err != nil {
		return err
	}
	var resp handler.MintAuthorityRequest
	req := handler.MintAuthorityRequest{Mint: mint, Granted: !c.Bool("revoke")}
	if err := post(c, "/admin/v1/ledger/mint-authority", req, &resp); err != nil {
		return err
	}
	return render(c, &resp)
}
