package domain

import "github.com/gagliardetto/solana-go"

// BasisPointsMax is 100% in basis points.
const BasisPointsMax = 10000

// Creator is a royalty recipient of a mint with its integer share percent.
type Creator struct {
	Address solana.PublicKey `json:"address"`
	Share   uint8            `json:"share"`
}

// MintMetadata carries the royalty terms of an asset.
type MintMetadata struct {
	Mint                 solana.PublicKey `json:"mint"`
	SellerFeeBasisPoints uint16           `json:"seller_fee_basis_points"`
	Creators             []Creator        `json:"creators"`
	UpdatedAt            int64            `json:"updated_at"`
	Version              uint64           `json:"version"`
}

func (m *MintMetadata) GetVersion() uint64  { return m.Version }
func (m *MintMetadata) SetVersion(v uint64) { m.Version = v }

// Validate checks royalty terms.
func (m *MintMetadata) Validate() error {
	if m.Mint.IsZero() {
		return ErrMissingArgument.WithDetails("mint is required")
	}
	if m.SellerFeeBasisPoints > BasisPointsMax {
		return ErrInvalidFeeConfiguration.WithDetails("seller_fee_basis_points exceeds 10000")
	}
	return ValidateCreators(m.Creators)
}

// Clone returns a deep copy.
func (m *MintMetadata) Clone() *MintMetadata {
	c := *m
	c.Creators = append([]Creator(nil), m.Creators...)
	return &c
}

// ValidateCreators checks that shares sum to exactly 100 when creators exist.
func ValidateCreators(creators []Creator) error {
	if len(creators) == 0 {
		return nil
	}
	var sum int
	seen := make(map[solana.PublicKey]struct{}, len(creators))
	for _, c := range creators {
		if _, dup := seen[c.Address]; dup {
			return ErrInvalidFeeConfiguration.WithDetailsf("duplicate creator %s", c.Address)
		}
		seen[c.Address] = struct{}{}
		sum += int(c.Share)
	}
	if sum != 100 {
		return ErrInvalidFeeConfiguration.WithDetailsf("creator shares sum to %d, want 100", sum)
	}
	return nil
}

// PaymentManager holds fee rates and the fee collector for payments routed through it.
type PaymentManager struct {
	ID                          solana.PublicKey `json:"id"`
	Bump                        uint8            `json:"bump"`
	Name                        string           `json:"name"`
	Authority                   solana.PublicKey `json:"authority"`
	FeeCollector                solana.PublicKey `json:"fee_collector"`
	MakerFeeBasisPoints         uint16           `json:"maker_fee_basis_points"`
	TakerFeeBasisPoints         uint16           `json:"taker_fee_basis_points"`
	IncludeSellerFeeBasisPoints bool             `json:"include_seller_fee_basis_points"`
	RoyaltyFeeShare             uint16           `json:"royalty_fee_share"`
	BuySideFeeShare             uint16           `json:"buy_side_fee_share"`
	CreatedAt                   int64            `json:"created_at"`
	UpdatedAt                   int64            `json:"updated_at"`
	Version                     uint64           `json:"version"`
}

func (p *PaymentManager) GetVersion() uint64  { return p.Version }
func (p *PaymentManager) SetVersion(v uint64) { p.Version = v }

// Clone returns a copy.
func (p *PaymentManager) Clone() *PaymentManager {
	c := *p
	return &c
}

// Marketplace is a named venue whose listings settle through one payment manager.
type Marketplace struct {
	ID             solana.PublicKey   `json:"id"`
	Bump           uint8              `json:"bump"`
	Name           string             `json:"name"`
	Authority      solana.PublicKey   `json:"authority"`
	PaymentManager solana.PublicKey   `json:"payment_manager"`
	PaymentMints   []solana.PublicKey `json:"payment_mints,omitempty"`
	CreatedAt      int64              `json:"created_at"`
	UpdatedAt      int64              `json:"updated_at"`
	Version        uint64             `json:"version"`
}

func (m *Marketplace) GetVersion() uint64  { return m.Version }
func (m *Marketplace) SetVersion(v uint64) { m.Version = v }

// AllowsPaymentMint reports whether the marketplace accepts mint. An empty
// allowlist accepts any mint.
func (m *Marketplace) AllowsPaymentMint(mint solana.PublicKey) bool {
	if len(m.PaymentMints) == 0 {
		return true
	}
	for _, pm := range m.PaymentMints {
		if pm.Equals(mint) {
			return true
		}
	}
	return false
}

// SetPaymentMints stores the allowlist without duplicates.
func (m *Marketplace) SetPaymentMints(mints []solana.PublicKey) {
	m.PaymentMints = dedupe(mints)
}

// Clone returns a deep copy.
func (m *Marketplace) Clone() *Marketplace {
	c := *m
	c.PaymentMints = append([]solana.PublicKey(nil), m.PaymentMints...)
	return &c
}

// Listing offers a claimed token manager for sale on a marketplace.
type Listing struct {
	ID            solana.PublicKey `json:"id"`
	Bump          uint8            `json:"bump"`
	TokenManager  solana.PublicKey `json:"token_manager"`
	Mint          solana.PublicKey `json:"mint"`
	Lister        solana.PublicKey `json:"lister"`
	Marketplace   solana.PublicKey `json:"marketplace"`
	PaymentAmount uint64           `json:"payment_amount"`
	PaymentMint   solana.PublicKey `json:"payment_mint"`
	CreatedAt     int64            `json:"created_at"`
	UpdatedAt     int64            `json:"updated_at"`
	Version       uint64           `json:"version"`
}

func (l *Listing) GetVersion() uint64  { return l.Version }
func (l *Listing) SetVersion(v uint64) { l.Version = v }

// Clone returns a copy.
func (l *Listing) Clone() *Listing {
	c := *l
	return &c
}
