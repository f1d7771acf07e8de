package fees

import (
	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

// Config is the rate set applied to one payment.
type Config struct {
	MakerFeeBasisPoints         uint16
	TakerFeeBasisPoints         uint16
	SellerFeeBasisPoints        uint16
	IncludeSellerFeeBasisPoints bool
	RoyaltyFeeShare             uint16
	BuySideFeeShare             uint16
	Creators                    []domain.Creator
}

// ConfigFor combines a payment manager's rates with a mint's royalty terms.
// A nil metadata means no royalties.
func ConfigFor(pm *domain.PaymentManager, md *domain.MintMetadata) Config {
	cfg := Config{
		MakerFeeBasisPoints:         pm.MakerFeeBasisPoints,
		TakerFeeBasisPoints:         pm.TakerFeeBasisPoints,
		IncludeSellerFeeBasisPoints: pm.IncludeSellerFeeBasisPoints,
		RoyaltyFeeShare:             pm.RoyaltyFeeShare,
		BuySideFeeShare:             pm.BuySideFeeShare,
	}
	if md != nil {
		cfg.SellerFeeBasisPoints = md.SellerFeeBasisPoints
		cfg.Creators = md.Creators
	}
	return cfg
}

// Validate rejects out-of-range rates and creator shares.
//
// Besides the per-rate bound, the seller side (maker + seller + buy side)
// and the fee side (maker + taker + buy side) must each stay within 100%
// so proceeds can never go negative.
func (c Config) Validate() error {
	rates := []struct {
		name string
		bp   uint16
	}{
		{"maker_fee_basis_points", c.MakerFeeBasisPoints},
		{"taker_fee_basis_points", c.TakerFeeBasisPoints},
		{"seller_fee_basis_points", c.SellerFeeBasisPoints},
		{"royalty_fee_share", c.RoyaltyFeeShare},
		{"buy_side_fee_share", c.BuySideFeeShare},
	}
	for _, r := range rates {
		if r.bp > domain.BasisPointsMax {
			return domain.ErrInvalidFeeConfiguration.WithDetailsf("%s %d exceeds %d", r.name, r.bp, domain.BasisPointsMax)
		}
	}

	maker, taker, buySide := int(c.MakerFeeBasisPoints), int(c.TakerFeeBasisPoints), int(c.BuySideFeeShare)
	if maker+taker+buySide > domain.BasisPointsMax {
		return domain.ErrInvalidFeeConfiguration.WithDetails("maker + taker + buy side exceeds 10000")
	}
	sellerSide := maker + buySide
	if c.IncludeSellerFeeBasisPoints {
		sellerSide += int(c.SellerFeeBasisPoints)
	}
	if sellerSide > domain.BasisPointsMax {
		return domain.ErrInvalidFeeConfiguration.WithDetails("maker + seller + buy side exceeds 10000")
	}
	return domain.ValidateCreators(c.Creators)
}

// Compute splits paymentAmount.
//
//	makerFee         = floor(P * maker / 10000)
//	takerFee         = floor(P * taker / 10000)
//	sellerFee        = floor(P * seller / 10000) if included, else 0
//	totalCreatorsFee = floor((maker+taker) * royaltyShare / 10000) + sellerFee
//	buySideFee       = floor(P * buySideShare / 10000)
//
// The maker, seller and buy side fees come out of the seller's proceeds; the
// taker fee is paid by the buyer on top of P. The fee collector keeps the
// part of maker+taker+seller fees that was not paid to creators.
func Compute(paymentAmount uint64, cfg Config) (*domain.FeeBreakdown, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bp := func(rate uint16) (uint64, error) {
		return domain.MulDiv(paymentAmount, uint64(rate), domain.BasisPointsMax)
	}

	b := &domain.FeeBreakdown{PaymentAmount: paymentAmount}
	var err error
	if b.MakerFee, err = bp(cfg.MakerFeeBasisPoints); err != nil {
		return nil, err
	}
	if b.TakerFee, err = bp(cfg.TakerFeeBasisPoints); err != nil {
		return nil, err
	}
	if cfg.IncludeSellerFeeBasisPoints {
		if b.SellerFee, err = bp(cfg.SellerFeeBasisPoints); err != nil {
			return nil, err
		}
	}
	if b.BuySideFee, err = bp(cfg.BuySideFeeShare); err != nil {
		return nil, err
	}

	tradeFees, err := domain.AddU64(b.MakerFee, b.TakerFee)
	if err != nil {
		return nil, err
	}
	royalty, err := domain.MulDiv(tradeFees, uint64(cfg.RoyaltyFeeShare), domain.BasisPointsMax)
	if err != nil {
		return nil, err
	}
	if b.TotalCreatorsFee, err = domain.AddU64(royalty, b.SellerFee); err != nil {
		return nil, err
	}

	collected, err := domain.AddU64(tradeFees, b.SellerFee)
	if err != nil {
		return nil, err
	}
	if b.TotalFees, err = domain.AddU64(collected, b.BuySideFee); err != nil {
		return nil, err
	}

	if len(cfg.Creators) > 0 {
		if b.CreatorPayouts, err = Distribute(b.TotalCreatorsFee, cfg.Creators); err != nil {
			return nil, err
		}
	}
	var paid uint64
	for _, p := range b.CreatorPayouts {
		paid += p.Amount
	}
	if b.FeeCollectorAmount, err = domain.SubU64(collected, paid); err != nil {
		return nil, err
	}

	deducted := b.MakerFee + b.SellerFee + b.BuySideFee
	if b.SellerProceeds, err = domain.SubU64(paymentAmount, deducted); err != nil {
		return nil, err
	}
	if b.BuyerTotal, err = domain.AddU64(paymentAmount, b.TakerFee); err != nil {
		return nil, err
	}
	return b, nil
}

// Distribute splits total across creators by integer share percent.
// Each creator gets floor(total * share / 100); the remainder is handed
// out one unit at a time to creators in list order.
func Distribute(total uint64, creators []domain.Creator) ([]domain.CreatorPayout, error) {
	if err := domain.ValidateCreators(creators); err != nil {
		return nil, err
	}
	if len(creators) == 0 {
		return nil, nil
	}

	payouts := make([]domain.CreatorPayout, len(creators))
	var sum uint64
	for i, c := range creators {
		base, err := domain.MulDiv(total, uint64(c.Share), 100)
		if err != nil {
			return nil, err
		}
		payouts[i] = domain.CreatorPayout{Creator: c.Address, Amount: base}
		sum += base
	}

	remainder := total - sum
	for i := 0; remainder > 0 && i < len(payouts); i++ {
		payouts[i].Amount++
		remainder--
	}
	return payouts, nil
}

// Party identifies who pays and who is paid in a settlement.
type Party struct {
	Payer        solana.PublicKey
	Payee        solana.PublicKey
	FeeCollector solana.PublicKey
	// BuySideReceiver gets the buy side fee; the fee collector if zero.
	BuySideReceiver solana.PublicKey
}

// Transfers turns a breakdown into payment-mint transfers from the payer.
// Zero amounts are skipped.
func Transfers(b *domain.FeeBreakdown, paymentMint solana.PublicKey, p Party) []domain.CustodyOp {
	buySide := p.BuySideReceiver
	if buySide.IsZero() {
		buySide = p.FeeCollector
	}

	var ops []domain.CustodyOp
	add := func(to solana.PublicKey, amount uint64) {
		if amount == 0 {
			return
		}
		ops = append(ops, domain.Transfer(paymentMint, p.Payer, to, amount))
	}
	add(p.Payee, b.SellerProceeds)
	for _, c := range b.CreatorPayouts {
		add(c.Creator, c.Amount)
	}
	add(p.FeeCollector, b.FeeCollectorAmount)
	add(buySide, b.BuySideFee)
	return ops
}
