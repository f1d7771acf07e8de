package command

import (
	"fmt"
	"net/url"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokvault-go/internal/cli/output"
	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/server/httpserver/handler"
)

// MarketplaceCommand returns the marketplace subcommand group.
func MarketplaceCommand() *cli.Command {
	return &cli.Command{
		Name:    "marketplace",
		Aliases: []string{"mkt"},
		Usage:   "Manage marketplaces",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a marketplace (caller is the authority)",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "payment-manager", Required: true, Usage: "payment manager settling sales"},
					&cli.StringSliceFlag{Name: "payment-mint", Usage: "accepted payment mint (repeatable, empty allows any)"},
				},
				Action: marketplaceCreate,
			},
			{
				Name:      "get",
				Usage:     "Show a marketplace",
				ArgsUsage: "MARKETPLACE_ID",
				Action:    marketplaceGet,
			},
			{
				Name:      "update",
				Usage:     "Change a marketplace (caller must be the authority)",
				ArgsUsage: "MARKETPLACE_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "new-authority", Usage: "transfer authority"},
					&cli.StringFlag{Name: "payment-manager", Usage: "payment manager settling sales"},
					&cli.StringSliceFlag{Name: "payment-mint", Usage: "replace accepted payment mints (repeatable)"},
				},
				Action: marketplaceUpdate,
			},
		},
	}
}

func keysFlag(c *cli.Context, name string) ([]solana.PublicKey, error) {
	var out []solana.PublicKey
	for _, raw := range c.StringSlice(name) {
		pk, err := domain.ParseIdentity(name, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, nil
}

func marketplaceCreate(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("name required")
	}
	if _, err := callerIdentity(c); err != nil {
		return err
	}
	pm, err := domain.ParseIdentity("payment-manager", c.String("payment-manager"))
	if err != nil {
		return err
	}
	mints, err := keysFlag(c, "payment-mint")
	if err != nil {
		return err
	}
	var m domain.Marketplace
	req := handler.CreateMarketplaceRequest{Name: name, PaymentManager: pm, PaymentMints: mints}
	if err := post(c, "/v1/marketplaces", req, &m); err != nil {
		return err
	}
	return render(c, &m)
}

func marketplaceGet(c *cli.Context) error {
	id, err := argKey(c, 0, "marketplace id")
	if err != nil {
		return err
	}
	var m domain.Marketplace
	if err := get(c, "/v1/marketplaces/"+id.String(), &m); err != nil {
		return err
	}
	return render(c, &m)
}

func marketplaceUpdate(c *cli.Context) error {
	id, err := argKey(c, 0, "marketplace id")
	if err != nil {
		return err
	}
	if _, err := callerIdentity(c); err != nil {
		return err
	}
	var req handler.UpdateMarketplaceRequest
	if req.NewAuthority, err = flagKey(c, "new-authority"); err != nil {
		return err
	}
	if req.PaymentManager, err = flagKey(c, "payment-manager"); err != nil {
		return err
	}
	if c.IsSet("payment-mint") {
		mints, err := keysFlag(c, "payment-mint")
		if err != nil {
			return err
		}
		req.PaymentMints = &mints
	}
	var m domain.Marketplace
	if err := post(c, "/v1/marketplaces/"+id.String(), req, &m); err != nil {
		return err
	}
	return render(c, &m)
}

// ListingCommand returns the listing subcommand group.
func ListingCommand() *cli.Command {
	return &cli.Command{
		Name:    "listing",
		Aliases: []string{"ls"},
		Usage:   "List claimed assets for sale and buy them",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "List a claimed token manager (caller is the holder)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token-manager", Required: true, Usage: "claimed token manager"},
					&cli.StringFlag{Name: "marketplace", Required: true, Usage: "marketplace to list on"},
					&cli.Uint64Flag{Name: "price", Required: true, Usage: "asking price in base units"},
					&cli.StringFlag{Name: "payment-mint", Required: true, Usage: "payment mint"},
				},
				Action: listingCreate,
			},
			{
				Name:      "get",
				Usage:     "Show a listing",
				ArgsUsage: "LISTING_ID",
				Action:    listingGet,
			},
			{
				Name:  "list",
				Usage: "List listings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "marketplace", Usage: "only listings on this marketplace"},
				},
				Action: listingList,
			},
			{
				Name:      "update",
				Usage:     "Change price or marketplace of a listing",
				ArgsUsage: "LISTING_ID",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "price", Required: true, Usage: "asking price in base units"},
					&cli.StringFlag{Name: "payment-mint", Usage: "payment mint"},
					&cli.StringFlag{Name: "marketplace", Usage: "move to another marketplace"},
				},
				Action: listingUpdate,
			},
			{
				Name:      "remove",
				Usage:     "Withdraw a listing",
				ArgsUsage: "LISTING_ID",
				Action:    listingRemove,
			},
			{
				Name:      "accept",
				Usage:     "Buy a listed asset (caller is the buyer)",
				ArgsUsage: "LISTING_ID",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "price", Usage: "expected price; the sale fails if the listing changed"},
					&cli.StringFlag{Name: "buy-side-receiver", Usage: "receiver of the buy side fee share"},
				},
				Action: listingAccept,
			},
		},
	}
}

func listingCreate(c *cli.Context) error {
	if _, err := callerIdentity(c); err != nil {
		return err
	}
	req := handler.CreateListingRequest{PaymentAmount: c.Uint64("price")}
	var err error
	if req.TokenManager, err = domain.ParseIdentity("token-manager", c.String("token-manager")); err != nil {
		return err
	}
	if req.Marketplace, err = domain.ParseIdentity("marketplace", c.String("marketplace")); err != nil {
		return err
	}
	if req.PaymentMint, err = domain.ParseIdentity("payment-mint", c.String("payment-mint")); err != nil {
		return err
	}
	var resp handler.ListingResponse
	if err := post(c, "/v1/listings", req, &resp); err != nil {
		return err
	}
	return render(c, resp.Listing)
}

func listingGet(c *cli.Context) error {
	id, err := argKey(c, 0, "listing id")
	if err != nil {
		return err
	}
	var l domain.Listing
	if err := get(c, "/v1/listings/"+id.String(), &l); err != nil {
		return err
	}
	return render(c, &l)
}

func listingList(c *cli.Context) error {
	path := "/v1/listings"
	if m := c.String("marketplace"); m != "" {
		path += "?" + url.Values{"marketplace": {m}}.Encode()
	}
	var resp handler.ListListingsResponse
	if err := get(c, path, &resp); err != nil {
		return err
	}
	return render(c, resp.Items)
}

func listingUpdate(c *cli.Context) error {
	id, err := argKey(c, 0, "listing id")
	if err != nil {
		return err
	}
	if _, err := callerIdentity(c); err != nil {
		return err
	}
	req := handler.UpdateListingRequest{PaymentAmount: c.Uint64("price")}
	if req.PaymentMint, err = flagKey(c, "payment-mint"); err != nil {
		return err
	}
	if req.Marketplace, err = flagKey(c, "marketplace"); err != nil {
		return err
	}
	var l domain.Listing
	if err := post(c, "/v1/listings/"+id.String(), req, &l); err != nil {
		return err
	}
	return render(c, &l)
}

func listingRemove(c *cli.Context) error {
	id, err := argKey(c, 0, "listing id")
	if err != nil {
		return err
	}
	if _, err := callerIdentity(c); err != nil {
		return err
	}
	var resp handler.ListingResponse
	if err := post(c, "/v1/listings/"+id.String()+"/remove", nil, &resp); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Listing %s removed.\n", id)
	return nil
}

func listingAccept(c *cli.Context) error {
	id, err := argKey(c, 0, "listing id")
	if err != nil {
		return err
	}
	if _, err := callerIdentity(c); err != nil {
		return err
	}
	var req handler.AcceptListingRequest
	if c.IsSet("price") {
		req.PaymentAmount = ptr(c.Uint64("price"))
	}
	receiver, err := flagKey(c, "buy-side-receiver")
	if err != nil {
		return err
	}
	if receiver != nil {
		req.BuySideReceiver = *receiver
	}
	var resp handler.ListingResponse
	if err := post(c, "/v1/listings/"+id.String()+"/accept", req, &resp); err != nil {
		return err
	}
	if resp.Receipt != nil && resp.Receipt.Fees != nil && outputFormat(c) == output.FormatTable {
		fmt.Fprintf(c.App.ErrWriter, "paid %d, fees %d\n", resp.Receipt.Fees.BuyerTotal, resp.Receipt.Fees.TotalFees)
	}
	return render(c, resp.TokenManager)
}
