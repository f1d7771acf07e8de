package command

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokvault-go/internal/cli/output"
	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/server/httpserver/handler"
)

// ManagerCommand returns the token manager subcommand group.
func ManagerCommand() *cli.Command {
	idArg := "TOKEN_MANAGER_ID"
	return &cli.Command{
		Name:    "manager",
		Aliases: []string{"tm"},
		Usage:   "Issue, claim and invalidate token managers",
		Subcommands: []*cli.Command{
			{
				Name:   "issue",
				Usage:  "Escrow an asset into a new token manager (caller is the issuer)",
				Flags:  issueFlags(),
				Action: managerIssue,
			},
			{
				Name:      "get",
				Usage:     "Show a token manager",
				ArgsUsage: idArg,
				Action:    managerGet,
			},
			{
				Name:  "list",
				Usage: "List token managers",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "state", Usage: "issued, claimed or invalidated"},
					&cli.StringFlag{Name: "issuer", Usage: "filter by issuer"},
					&cli.StringFlag{Name: "recipient", Usage: "filter by recipient"},
					&cli.StringFlag{Name: "mint", Usage: "filter by mint"},
					&cli.IntFlag{Name: "limit", Usage: "maximum results"},
				},
				Action: managerList,
			},
			{
				Name:      "claim",
				Usage:     "Claim an issued token manager (caller is the recipient)",
				ArgsUsage: idArg,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "secret", Usage: "one-time claim secret"},
					&cli.StringFlag{Name: "payer", Usage: "account paying the claim price (defaults to the caller)"},
				},
				Action: managerClaim,
			},
			{
				Name:      "use",
				Usage:     "Record usages",
				ArgsUsage: idArg,
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "usages", Value: 1, Usage: "number of usages"},
				},
				Action: managerUse,
			},
			{
				Name:      "extend-time",
				Usage:     "Buy more time from the time invalidator",
				ArgsUsage: idArg,
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "seconds", Required: true, Usage: "seconds to buy"},
				},
				Action: managerExtendTime,
			},
			{
				Name:      "extend-usages",
				Usage:     "Buy more usages from the use invalidator",
				ArgsUsage: idArg,
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "usages", Required: true, Usage: "usages to buy"},
				},
				Action: managerExtendUsages,
			},
			{
				Name:      "invalidate",
				Usage:     "End custody as an invalidator",
				ArgsUsage: idArg,
				Action:    managerSimple("invalidate"),
			},
			{
				Name:      "unissue",
				Usage:     "Return an unclaimed asset to the issuer",
				ArgsUsage: idArg,
				Action:    managerSimple("unissue"),
			},
			{
				Name:      "evaluate",
				Usage:     "Fire due time or use policies",
				ArgsUsage: idArg,
				Action:    managerEvaluate,
			},
			{
				Name:      "close",
				Usage:     "Remove an invalidated token manager",
				ArgsUsage: idArg,
				Action:    managerSimple("close"),
			},
			{
				Name:      "set-invalidation-type",
				Usage:     "Switch between return and reissue",
				ArgsUsage: idArg + " TYPE",
				Action:    managerSetInvalidationType,
			},
			{
				Name:      "replace-invalidator",
				Usage:     "Hand the caller's invalidator slot to another identity",
				ArgsUsage: idArg + " NEW_INVALIDATOR",
				Action:    managerReplaceInvalidator,
			},
			{
				Name:      "set-max-expiration",
				Usage:     "Change the hard expiration bound (unix seconds)",
				ArgsUsage: idArg + " MAX_EXPIRATION",
				Action:    managerSetMaxExpiration,
			},
		},
	}
}

func issueFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "mint", Required: true, Usage: "mint of the escrowed asset"},
		&cli.Uint64Flag{Name: "amount", Value: 1, Usage: "units to escrow"},
		&cli.StringFlag{Name: "kind", Value: "unmanaged", Usage: "unmanaged, managed, permissioned, edition or programmable"},
		&cli.StringFlag{Name: "invalidation-type", Value: "return", Usage: "return, invalidate, release or reissue"},

		&cli.StringFlag{Name: "approver", Usage: "only this identity may claim"},
		&cli.BoolFlag{Name: "credential", Usage: "require a one-time claim secret"},
		&cli.Uint64Flag{Name: "claim-price", Usage: "price to claim"},
		&cli.StringFlag{Name: "claim-mint", Usage: "payment mint of the claim price"},
		&cli.StringFlag{Name: "claim-payment-manager", Usage: "payment manager settling the claim price"},

		&cli.Int64Flag{Name: "duration", Usage: "seconds of custody after claim"},
		&cli.Int64Flag{Name: "expiration", Usage: "absolute expiration (unix seconds)"},
		&cli.Int64Flag{Name: "max-expiration", Usage: "hard expiration bound (unix seconds)"},
		&cli.Uint64Flag{Name: "extension-price", Usage: "price of one extension"},
		&cli.Uint64Flag{Name: "extension-seconds", Usage: "seconds bought by one extension"},
		&cli.StringFlag{Name: "extension-mint", Usage: "payment mint for extensions"},
		&cli.StringFlag{Name: "extension-payment-manager", Usage: "payment manager settling extensions"},
		&cli.BoolFlag{Name: "no-partial-extension", Usage: "only allow whole extension multiples"},

		&cli.Uint64Flag{Name: "total-usages", Usage: "usages before invalidation"},
		&cli.Uint64Flag{Name: "max-usages", Usage: "hard cap on purchasable usages"},
		&cli.StringFlag{Name: "use-authority", Usage: "only this identity may record usages"},

		&cli.StringSliceFlag{Name: "invalidator", Usage: "custom invalidator identity (repeatable)"},
	}
}

// buildIssueRequest maps issue flags onto the request body.
func buildIssueRequest(c *cli.Context) (*handler.IssueRequest, error) {
	mint, err := domain.ParseIdentity("mint", c.String("mint"))
	if err != nil {
		return nil, err
	}
	kind, err := domain.ParseKind(c.String("kind"))
	if err != nil {
		return nil, err
	}
	itype, err := domain.ParseInvalidationType(c.String("invalidation-type"))
	if err != nil {
		return nil, err
	}
	req := &handler.IssueRequest{
		Mint:             mint,
		Amount:           c.Uint64("amount"),
		Kind:             &kind,
		InvalidationType: &itype,
	}

	approver, err := flagKey(c, "approver")
	if err != nil {
		return nil, err
	}
	if approver != nil || c.Bool("credential") || c.IsSet("claim-price") {
		ca := &handler.ClaimApproverRequest{Identity: approver, Credential: c.Bool("credential")}
		if c.IsSet("claim-price") {
			terms, err := paymentTerms(c, "claim-price", "claim-mint", "claim-payment-manager")
			if err != nil {
				return nil, err
			}
			ca.Payment = terms
		}
		req.ClaimApprover = ca
	}

	if c.IsSet("duration") || c.IsSet("expiration") || c.IsSet("max-expiration") || c.IsSet("extension-price") {
		ti := &domain.TimeInvalidator{}
		if c.IsSet("duration") {
			ti.DurationSeconds = ptr(c.Int64("duration"))
		}
		if c.IsSet("expiration") {
			ti.Expiration = ptr(c.Int64("expiration"))
		}
		if c.IsSet("max-expiration") {
			ti.MaxExpiration = ptr(c.Int64("max-expiration"))
		}
		if c.IsSet("extension-price") {
			terms, err := paymentTerms(c, "extension-price", "extension-mint", "extension-payment-manager")
			if err != nil {
				return nil, err
			}
			ti.Extension = &domain.TimeExtension{
				PaymentAmount:           terms.PaymentAmount,
				PaymentMint:             terms.PaymentMint,
				PaymentManager:          terms.PaymentManager,
				DurationSeconds:         c.Uint64("extension-seconds"),
				DisablePartialExtension: c.Bool("no-partial-extension"),
			}
		}
		req.TimeInvalidator = ti
	}

	if c.IsSet("total-usages") || c.IsSet("max-usages") || c.IsSet("use-authority") {
		ui := &domain.UseInvalidator{}
		if c.IsSet("total-usages") {
			ui.TotalUsages = ptr(c.Uint64("total-usages"))
		}
		if c.IsSet("max-usages") {
			ui.MaxUsages = ptr(c.Uint64("max-usages"))
		}
		if ui.UseAuthority, err = flagKey(c, "use-authority"); err != nil {
			return nil, err
		}
		req.UseInvalidator = ui
	}

	for _, raw := range c.StringSlice("invalidator") {
		pk, err := domain.ParseIdentity("invalidator", raw)
		if err != nil {
			return nil, err
		}
		req.CustomInvalidators = append(req.CustomInvalidators, pk)
	}
	return req, nil
}

func paymentTerms(c *cli.Context, amount, mint, manager string) (*domain.PaymentTerms, error) {
	m, err := domain.ParseIdentity(mint, c.String(mint))
	if err != nil {
		return nil, err
	}
	pm, err := domain.ParseIdentity(manager, c.String(manager))
	if err != nil {
		return nil, err
	}
	return &domain.PaymentTerms{PaymentAmount: c.Uint64(amount), PaymentMint: m, PaymentManager: pm}, nil
}

func ptr[T any](v T) *T { return &v }

func managerPath(id solana.PublicKey, action string) string {
	p := "/v1/token-managers/" + id.String()
	if action != "" {
		p += "/" + action
	}
	return p
}

func managerIssue(c *cli.Context) error {
	if _, err := callerIdentity(c); err != nil {
		return err
	}
	req, err := buildIssueRequest(c)
	if err != nil {
		return err
	}
	var resp handler.IssueResponse
	if err := post(c, "/v1/token-managers", req, &resp); err != nil {
		return err
	}
	if resp.ClaimSecret != "" {
		fmt.Fprintf(c.App.ErrWriter, "claim secret: %s\nSave this secret - it cannot be retrieved later.\n", resp.ClaimSecret)
	}
	return render(c, resp.TokenManager)
}

func managerGet(c *cli.Context) error {
	id, err := argKey(c, 0, "token manager id")
	if err != nil {
		return err
	}
	var tm domain.TokenManager
	if err := get(c, managerPath(id, ""), &tm); err != nil {
		return err
	}
	return render(c, &tm)
}

// managerRow is the list view of a token manager.
type managerRow struct {
	ID               solana.PublicKey        `json:"id"`
	State            domain.State            `json:"state"`
	Kind             domain.Kind             `json:"kind"`
	InvalidationType domain.InvalidationType `json:"invalidation_type"`
	Mint             solana.PublicKey        `json:"mint"`
	Issuer           solana.PublicKey        `json:"issuer" table:"wide"`
	Recipient        *solana.PublicKey       `json:"recipient"`
	Amount           uint64                  `json:"amount" table:"wide"`
}

func managerList(c *cli.Context) error {
	q := url.Values{}
	for _, f := range []string{"state", "issuer", "recipient", "mint"} {
		if v := c.String(f); v != "" {
			q.Set(f, v)
		}
	}
	if n := c.Int("limit"); n > 0 {
		q.Set("limit", strconv.Itoa(n))
	}
	path := "/v1/token-managers"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp handler.ListTokenManagersResponse
	if err := get(c, path, &resp); err != nil {
		return err
	}
	if outputFormat(c) != output.FormatTable {
		return render(c, resp)
	}
	rows := make([]managerRow, 0, len(resp.Items))
	for _, tm := range resp.Items {
		rows = append(rows, managerRow{
			ID: tm.ID, State: tm.State, Kind: tm.Kind, InvalidationType: tm.InvalidationType,
			Mint: tm.Mint, Issuer: tm.Issuer, Recipient: tm.Recipient, Amount: tm.Amount,
		})
	}
	if err := render(c, rows); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nTotal: %d token managers\n", resp.Total)
	return nil
}

// transition posts body to a token manager action and renders the result.
func transition(c *cli.Context, action string, body any) error {
	if _, err := callerIdentity(c); err != nil {
		return err
	}
	id, err := argKey(c, 0, "token manager id")
	if err != nil {
		return err
	}
	var resp handler.TransitionResponse
	if err := post(c, managerPath(id, action), body, &resp); err != nil {
		return err
	}
	if resp.TokenManager == nil {
		fmt.Fprintf(c.App.Writer, "Token manager %s: %s done.\n", id, action)
		return nil
	}
	return render(c, resp.TokenManager)
}

func managerSimple(action string) cli.ActionFunc {
	return func(c *cli.Context) error {
		return transition(c, action, nil)
	}
}

func managerClaim(c *cli.Context) error {
	payer, err := flagKey(c, "payer")
	if err != nil {
		return err
	}
	return transition(c, "claim", handler.ClaimRequest{Secret: c.String("secret"), Payer: payer})
}

func managerUse(c *cli.Context) error {
	return transition(c, "use", handler.UseRequest{Usages: c.Uint64("usages")})
}

func managerExtendTime(c *cli.Context) error {
	return transition(c, "extend-time", handler.ExtendTimeRequest{Seconds: c.Uint64("seconds")})
}

func managerExtendUsages(c *cli.Context) error {
	return transition(c, "extend-usages", handler.ExtendUsagesRequest{Usages: c.Uint64("usages")})
}

func managerSetInvalidationType(c *cli.Context) error {
	itype, err := domain.ParseInvalidationType(c.Args().Get(1))
	if err != nil {
		return err
	}
	return transition(c, "invalidation-type", handler.InvalidationTypeRequest{InvalidationType: itype})
}

func managerReplaceInvalidator(c *cli.Context) error {
	next, err := argKey(c, 1, "new invalidator")
	if err != nil {
		return err
	}
	return transition(c, "invalidators/replace", handler.ReplaceInvalidatorRequest{NewInvalidator: next})
}

func managerSetMaxExpiration(c *cli.Context) error {
	v, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("max expiration must be unix seconds: %w", err)
	}
	return transition(c, "max-expiration", handler.MaxExpirationRequest{MaxExpiration: v})
}

func managerEvaluate(c *cli.Context) error {
	id, err := argKey(c, 0, "token manager id")
	if err != nil {
		return err
	}
	var resp handler.EvaluateResponse
	if err := post(c, managerPath(id, "evaluate"), nil, &resp); err != nil {
		return err
	}
	if !resp.Fired {
		fmt.Fprintf(c.App.Writer, "No policy is due for %s.\n", id)
		return nil
	}
	return render(c, resp)
}
