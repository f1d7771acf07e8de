package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/server/httpserver/handler"
)

// FeesCommand returns the fees subcommand group.
func FeesCommand() *cli.Command {
	return &cli.Command{
		Name:  "fees",
		Usage: "Fee calculations",
		Subcommands: []*cli.Command{
			{
				Name:  "quote",
				Usage: "Break a price down into fees, royalties and proceeds",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "payment-manager", Required: true, Usage: "payment manager ID"},
					&cli.StringFlag{Name: "mint", Usage: "asset mint, for royalties"},
					&cli.Uint64Flag{Name: "amount", Required: true, Usage: "price in base units"},
				},
				Action: feesQuote,
			},
		},
	}
}

func feesQuote(c *cli.Context) error {
	pm, err := domain.ParseIdentity("payment-manager", c.String("payment-manager"))
	if err != nil {
		return err
	}
	mint, err := flagKey(c, "mint")
	if err != nil {
		return err
	}
	req := handler.QuoteRequest{PaymentManager: pm, Amount: c.Uint64("amount")}
	if mint != nil {
		req.Mint = *mint
	}
	var b domain.FeeBreakdown
	if err := post(c, "/v1/fees/quote", req, &b); err != nil {
		return err
	}
	return render(c, &b)
}

// PaymentManagerCommand returns the payment-manager subcommand group.
func PaymentManagerCommand() *cli.Command {
	return &cli.Command{
		Name:    "payment-manager",
		Aliases: []string{"pm"},
		Usage:   "Manage fee schedules",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a payment manager (caller is the authority)",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "fee-collector", Usage: "fee recipient (defaults to the server collector)"},
					&cli.UintFlag{Name: "maker-fee", Usage: "maker fee in basis points"},
					&cli.UintFlag{Name: "taker-fee", Usage: "taker fee in basis points"},
					&cli.BoolFlag{Name: "include-royalties", Usage: "pay creator royalties on sales"},
					&cli.UintFlag{Name: "royalty-fee-share", Usage: "basis points of fees redirected to creators"},
					&cli.UintFlag{Name: "buy-side-fee-share", Usage: "basis points of fees paid to the buy side receiver"},
				},
				Action: paymentManagerCreate,
			},
			{
				Name:      "get",
				Usage:     "Show a payment manager",
				ArgsUsage: "PAYMENT_MANAGER_ID",
				Action:    paymentManagerGet,
			},
			{
				Name:   "list",
				Usage:  "List payment managers",
				Action: paymentManagerList,
			},
			{
				Name:      "update",
				Usage:     "Change a payment manager (caller must be the authority)",
				ArgsUsage: "PAYMENT_MANAGER_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "new-authority", Usage: "transfer authority"},
					&cli.StringFlag{Name: "fee-collector", Usage: "fee recipient"},
					&cli.UintFlag{Name: "maker-fee", Usage: "maker fee in basis points"},
					&cli.UintFlag{Name: "taker-fee", Usage: "taker fee in basis points"},
					&cli.BoolFlag{Name: "include-royalties", Usage: "pay creator royalties on sales"},
					&cli.UintFlag{Name: "royalty-fee-share", Usage: "basis points of fees redirected to creators"},
					&cli.UintFlag{Name: "buy-side-fee-share", Usage: "basis points of fees paid to the buy side receiver"},
				},
				Action: paymentManagerUpdate,
			},
		},
	}
}

func basisPoints(c *cli.Context, name string) (uint16, error) {
	v := c.Uint(name)
	if v > domain.BasisPointsMax {
		return 0, fmt.Errorf("--%s must be at most %d", name, domain.BasisPointsMax)
	}
	return uint16(v), nil
}

func paymentManagerCreate(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("name required")
	}
	if _, err := callerIdentity(c); err != nil {
		return err
	}
	req := handler.CreatePaymentManagerRequest{Name: name, IncludeSellerFeeBasisPoints: c.Bool("include-royalties")}
	collector, err := flagKey(c, "fee-collector")
	if err != nil {
		return err
	}
	if collector != nil {
		req.FeeCollector = *collector
	}
	for flag, dst := range map[string]*uint16{
		"maker-fee":          &req.MakerFeeBasisPoints,
		"taker-fee":          &req.TakerFeeBasisPoints,
		"royalty-fee-share":  &req.RoyaltyFeeShare,
		"buy-side-fee-share": &req.BuySideFeeShare,
	} {
		if *dst, err = basisPoints(c, flag); err != nil {
			return err
		}
	}

	var pm domain.PaymentManager
	if err := post(c, "/v1/payment-managers", req, &pm); err != nil {
		return err
	}
	return render(c, &pm)
}

func paymentManagerGet(c *cli.Context) error {
	id, err := argKey(c, 0, "payment manager id")
	if err != nil {
		return err
	}
	var pm domain.PaymentManager
	if err := get(c, "/v1/payment-managers/"+id.String(), &pm); err != nil {
		return err
	}
	return render(c, &pm)
}

func paymentManagerList(c *cli.Context) error {
	var items []*domain.PaymentManager
	if err := get(c, "/v1/payment-managers", &items); err != nil {
		return err
	}
	return render(c, items)
}

func paymentManagerUpdate(c *cli.Context) error {
	id, err := argKey(c, 0, "payment manager id")
	if err != nil {
		return err
	}
	if _, err := callerIdentity(c); err != nil {
		return err
	}
	var req handler.UpdatePaymentManagerRequest
	if req.NewAuthority, err = flagKey(c, "new-authority"); err != nil {
		return err
	}
	if req.FeeCollector, err = flagKey(c, "fee-collector"); err != nil {
		return err
	}
	for flag, dst := range map[string]**uint16{
		"maker-fee":          &req.MakerFeeBasisPoints,
		"taker-fee":          &req.TakerFeeBasisPoints,
		"royalty-fee-share":  &req.RoyaltyFeeShare,
		"buy-side-fee-share": &req.BuySideFeeShare,
	} {
		if !c.IsSet(flag) {
			continue
		}
		v, err := basisPoints(c, flag)
		if err != nil {
			return err
		}
		*dst = &v
	}
	if c.IsSet("include-royalties") {
		req.IncludeSellerFeeBasisPoints = ptr(c.Bool("include-royalties"))
	}

	var pm domain.PaymentManager
	if err := post(c, "/v1/payment-managers/"+id.String(), req, &pm); err != nil {
		return err
	}
	return render(c, &pm)
}

// MintCommand returns the mint subcommand group.
func MintCommand() *cli.Command {
	return &cli.Command{
		Name:  "mint",
		Usage: "Manage royalty terms of mints",
		Subcommands: []*cli.Command{
			{
				Name:      "register",
				Usage:     "Set royalty terms for a mint",
				ArgsUsage: "MINT",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "seller-fee", Usage: "royalty in basis points"},
					&cli.StringSliceFlag{Name: "creator", Usage: "ADDRESS:SHARE (repeatable, shares sum to 100)"},
				},
				Action: mintRegister,
			},
			{
				Name:      "get",
				Usage:     "Show royalty terms of a mint",
				ArgsUsage: "MINT",
				Action:    mintGet,
			},
		},
	}
}

// parseCreator parses ADDRESS:SHARE.
func parseCreator(s string) (domain.Creator, error) {
	addr, share, ok := strings.Cut(s, ":")
	if !ok {
		return domain.Creator{}, fmt.Errorf("creator %q: want ADDRESS:SHARE", s)
	}
	pk, err := domain.ParseIdentity("creator", addr)
	if err != nil {
		return domain.Creator{}, err
	}
	n, err := strconv.ParseUint(share, 10, 8)
	if err != nil || n > 100 {
		return domain.Creator{}, fmt.Errorf("creator %q: share must be 0-100", s)
	}
	return domain.Creator{Address: pk, Share: uint8(n)}, nil
}

func mintRegister(c *cli.Context) error {
	mint, err := argKey(c, 0, "mint")
	if err != nil {
		return err
	}
	fee, err := basisPoints(c, "seller-fee")
	if err != nil {
		return err
	}
	req := handler.RegisterMintRequest{Mint: mint, SellerFeeBasisPoints: fee}
	for _, raw := range c.StringSlice("creator") {
		cr, err := parseCreator(raw)
		if err != nil {
			return err
		}
		req.Creators = append(req.Creators, cr)
	}
	var md domain.MintMetadata
	if err := post(c, "/v1/mints", req, &md); err != nil {
		return err
	}
	return render(c, &md)
}

func mintGet(c *cli.Context) error {
	mint, err := argKey(c, 0, "mint")
	if err != nil {
		return err
	}
	var md domain.MintMetadata
	if err := get(c, "/v1/mints/"+mint.String(), &md); err != nil {
		return err
	}
	return render(c, &md)
}
