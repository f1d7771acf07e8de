package service

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

// market is a marketplace with a royalty-paying payment manager.
type market struct {
	*fixture
	authority   solana.PublicKey
	marketplace *domain.Marketplace
	currency    solana.PublicKey
	creator     solana.PublicKey
	seller      solana.PublicKey
}

// newMarket sets up maker 2%, taker 1%, buy side 1% and a 5% royalty mint.
func newMarket(t *testing.T) *market {
	t.Helper()
	f := newFixture(t)
	m := &market{
		fixture:   f,
		authority: newKey(),
		currency:  newKey(),
		creator:   newKey(),
		seller:    newKey(),
	}

	pm, err := f.svc.Payments.CreatePaymentManager(f.ctx, &CreatePaymentManagerRequest{
		Name:                        "market-pm",
		Authority:                   m.authority,
		MakerFeeBasisPoints:         200,
		TakerFeeBasisPoints:         100,
		IncludeSellerFeeBasisPoints: true,
		BuySideFeeShare:             100,
	})
	require.NoError(t, err)

	m.marketplace, err = f.svc.Marketplace.InitMarketplace(f.ctx, &InitMarketplaceRequest{
		Name:           "bazaar",
		Authority:      m.authority,
		PaymentManager: pm.ID,
		PaymentMints:   []solana.PublicKey{m.currency},
	})
	require.NoError(t, err)
	return m
}

// claimed issues a manager of kind and claims it for the seller. The
// asset mint carries the royalty terms.
func (m *market) claimed(kind domain.Kind) *domain.TokenManager {
	m.t.Helper()
	tm := m.issue(IssueRequest{Kind: kind})
	_, err := m.svc.Payments.RegisterMint(m.ctx, &RegisterMintRequest{
		Mint:                 tm.Mint,
		SellerFeeBasisPoints: 500,
		Creators:             []domain.Creator{{Address: m.creator, Share: 100}},
	})
	require.NoError(m.t, err)
	return m.claim(tm, m.seller)
}

func (m *market) list(tm *domain.TokenManager, price uint64) *domain.Listing {
	m.t.Helper()
	resp, err := m.svc.Marketplace.CreateListing(m.ctx, &CreateListingRequest{
		Lister:        m.seller,
		TokenManager:  tm.ID,
		Marketplace:   m.marketplace.ID,
		PaymentAmount: price,
		PaymentMint:   m.currency,
	})
	require.NoError(m.t, err)
	return resp.Listing
}

func TestInitMarketplace_RequiresRoyaltyPaymentManager(t *testing.T) {
	f := newFixture(t)
	authority := newKey()
	pm, err := f.svc.Payments.CreatePaymentManager(f.ctx, &CreatePaymentManagerRequest{Name: "plain", Authority: authority})
	require.NoError(t, err)

	_, err = f.svc.Marketplace.InitMarketplace(f.ctx, &InitMarketplaceRequest{
		Name: "m", Authority: authority, PaymentManager: pm.ID,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentManager)

	_, err = f.svc.Marketplace.InitMarketplace(f.ctx, &InitMarketplaceRequest{
		Name: "m", Authority: authority, PaymentManager: newKey(),
	})
	assert.ErrorIs(t, err, domain.ErrPaymentManagerNotFound)
}

func TestUpdateMarketplace(t *testing.T) {
	m := newMarket(t)
	other := newKey()

	_, err := m.svc.Marketplace.UpdateMarketplace(m.ctx, &UpdateMarketplaceRequest{
		ID: m.marketplace.ID, Authority: other, PaymentMints: &[]solana.PublicKey{},
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	updated, err := m.svc.Marketplace.UpdateMarketplace(m.ctx, &UpdateMarketplaceRequest{
		ID: m.marketplace.ID, Authority: m.authority, PaymentMints: &[]solana.PublicKey{}, NewAuthority: key(other),
	})
	require.NoError(t, err)
	assert.Equal(t, other, updated.Authority)
	assert.True(t, updated.AllowsPaymentMint(newKey()), "empty allowlist accepts any mint")
}

func TestCreateListing(t *testing.T) {
	m := newMarket(t)
	tm := m.claimed(domain.KindManaged)

	t.Run("not the recipient", func(t *testing.T) {
		_, err := m.svc.Marketplace.CreateListing(m.ctx, &CreateListingRequest{
			Lister: newKey(), TokenManager: tm.ID, Marketplace: m.marketplace.ID,
			PaymentAmount: 1000, PaymentMint: m.currency,
		})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("mint not allowed", func(t *testing.T) {
		_, err := m.svc.Marketplace.CreateListing(m.ctx, &CreateListingRequest{
			Lister: m.seller, TokenManager: tm.ID, Marketplace: m.marketplace.ID,
			PaymentAmount: 1000, PaymentMint: newKey(),
		})
		assert.ErrorIs(t, err, domain.ErrPaymentMintNotAllowed)
	})

	listing := m.list(tm, 1000)
	want, _, err := domain.ListingAddress(tm.ID)
	require.NoError(t, err)
	assert.Equal(t, want, listing.ID)
	assert.True(t, m.get(tm.ID).Listed)
	assert.Equal(t, domain.OperationCreateListing, m.receipts.last().Operation)

	acct := m.account(tm.Mint, m.seller)
	assert.True(t, acct.Frozen)
	require.NotNil(t, acct.Delegate)
	assert.Equal(t, tm.ID, *acct.Delegate)

	t.Run("listed twice", func(t *testing.T) {
		_, err := m.svc.Marketplace.CreateListing(m.ctx, &CreateListingRequest{
			Lister: m.seller, TokenManager: tm.ID, Marketplace: m.marketplace.ID,
			PaymentAmount: 5, PaymentMint: m.currency,
		})
		assert.ErrorIs(t, err, domain.ErrListingConflict)
	})

	t.Run("unclaimed", func(t *testing.T) {
		issued := m.issue(IssueRequest{})
		_, err := m.svc.Marketplace.CreateListing(m.ctx, &CreateListingRequest{
			Lister: m.seller, TokenManager: issued.ID, Marketplace: m.marketplace.ID,
			PaymentAmount: 5, PaymentMint: m.currency,
		})
		assert.Error(t, err)
	})
}

func TestAcceptListing_SettlesAndMovesCustody(t *testing.T) {
	m := newMarket(t)
	tm := m.claimed(domain.KindManaged)
	listing := m.list(tm, 1000)
	buyer := newKey()

	_, err := m.svc.Marketplace.AcceptListing(m.ctx, &AcceptListingRequest{ID: listing.ID, Buyer: m.seller})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = m.svc.Marketplace.AcceptListing(m.ctx, &AcceptListingRequest{ID: listing.ID, Buyer: buyer, PaymentAmount: u64(999)})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	// Price 1000 plus the 1% taker fee.
	m.fund(m.currency, buyer, 1010)
	resp, err := m.svc.Marketplace.AcceptListing(m.ctx, &AcceptListingRequest{ID: listing.ID, Buyer: buyer, PaymentAmount: u64(1000)})
	require.NoError(t, err)

	// maker 20, taker 10, seller fee 50 to the creator, buy side 10.
	assert.Equal(t, uint64(920), m.balance(m.currency, m.seller))
	assert.Equal(t, uint64(50), m.balance(m.currency, m.creator))
	assert.Equal(t, uint64(40), m.balance(m.currency, m.collector))
	assert.Zero(t, m.balance(m.currency, buyer))
	require.NotNil(t, resp.Receipt.Fees)
	assert.Equal(t, uint64(1010), resp.Receipt.Fees.BuyerTotal)
	assert.Equal(t, domain.OperationAcceptListing, resp.Receipt.Operation)

	got := m.get(tm.ID)
	assert.Equal(t, buyer, *got.Recipient)
	assert.False(t, got.Listed)
	assert.Equal(t, domain.StateClaimed, got.State)

	bought := m.account(tm.Mint, buyer)
	assert.Equal(t, uint64(1), bought.Balance)
	assert.True(t, bought.Frozen)
	assert.Nil(t, bought.Delegate)

	sold := m.account(tm.Mint, m.seller)
	assert.Zero(t, sold.Balance)
	assert.False(t, sold.Frozen)
	assert.Nil(t, sold.Delegate)

	_, err = m.svc.Marketplace.GetListing(m.ctx, listing.ID)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestAcceptListing_InsufficientFundsKeepsListing(t *testing.T) {
	m := newMarket(t)
	tm := m.claimed(domain.KindManaged)
	listing := m.list(tm, 1000)
	buyer := newKey()
	m.fund(m.currency, buyer, 500)

	_, err := m.svc.Marketplace.AcceptListing(m.ctx, &AcceptListingRequest{ID: listing.ID, Buyer: buyer})
	require.Error(t, err)

	assert.Equal(t, uint64(500), m.balance(m.currency, buyer))
	assert.Zero(t, m.balance(m.currency, m.seller))
	_, err = m.svc.Marketplace.GetListing(m.ctx, listing.ID)
	assert.NoError(t, err)
	assert.Equal(t, m.seller, *m.get(tm.ID).Recipient)
}

func TestAcceptListing_WriteFailureRollsBack(t *testing.T) {
	m := newMarket(t)
	tm := m.claimed(domain.KindManaged)
	listing := m.list(tm, 1000)
	buyer := newKey()
	m.fund(m.currency, buyer, 1010)

	m.managers.failUpdates = true
	_, err := m.svc.Marketplace.AcceptListing(m.ctx, &AcceptListingRequest{ID: listing.ID, Buyer: buyer})
	require.Error(t, err)
	m.managers.failUpdates = false

	assert.Equal(t, uint64(1010), m.balance(m.currency, buyer))
	assert.Zero(t, m.balance(m.currency, m.collector))
	assert.Equal(t, uint64(1), m.balance(tm.Mint, m.seller))
	assert.Zero(t, m.balance(tm.Mint, buyer))

	acct := m.account(tm.Mint, m.seller)
	assert.True(t, acct.Frozen)
	require.NotNil(t, acct.Delegate)
	_, err = m.svc.Marketplace.GetListing(m.ctx, listing.ID)
	assert.NoError(t, err)
}

func TestAcceptListing_Edition(t *testing.T) {
	m := newMarket(t)
	tm := m.claimed(domain.KindEdition)
	listing := m.list(tm, 200)
	buyer := newKey()
	m.fund(m.currency, buyer, 202)

	_, err := m.svc.Marketplace.AcceptListing(m.ctx, &AcceptListingRequest{ID: listing.ID, Buyer: buyer})
	require.NoError(t, err)

	// Edition holders stay delegated to the manager.
	bought := m.account(tm.Mint, buyer)
	assert.True(t, bought.Frozen)
	require.NotNil(t, bought.Delegate)
	assert.Equal(t, tm.ID, *bought.Delegate)
}

func TestRemoveListing(t *testing.T) {
	m := newMarket(t)
	tm := m.claimed(domain.KindManaged)
	listing := m.list(tm, 1000)

	_, err := m.svc.Marketplace.RemoveListing(m.ctx, &RemoveListingRequest{ID: listing.ID, Caller: newKey()})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	resp, err := m.svc.Marketplace.RemoveListing(m.ctx, &RemoveListingRequest{ID: listing.ID, Caller: m.authority})
	require.NoError(t, err)
	assert.Equal(t, domain.OperationRemoveListing, resp.Receipt.Operation)
	assert.False(t, m.get(tm.ID).Listed)

	acct := m.account(tm.Mint, m.seller)
	assert.True(t, acct.Frozen)
	assert.Nil(t, acct.Delegate)

	_, err = m.svc.Marketplace.GetListing(m.ctx, listing.ID)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)

	// Listing again after removal works.
	m.list(tm, 10)
}

func TestUpdateListing(t *testing.T) {
	m := newMarket(t)
	tm := m.claimed(domain.KindUnmanaged)
	listing := m.list(tm, 1000)

	_, err := m.svc.Marketplace.UpdateListing(m.ctx, &UpdateListingRequest{ID: listing.ID, Lister: newKey(), PaymentAmount: 1})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = m.svc.Marketplace.UpdateListing(m.ctx, &UpdateListingRequest{
		ID: listing.ID, Lister: m.seller, PaymentAmount: 1, PaymentMint: key(newKey()),
	})
	assert.ErrorIs(t, err, domain.ErrPaymentMintNotAllowed)

	updated, err := m.svc.Marketplace.UpdateListing(m.ctx, &UpdateListingRequest{ID: listing.ID, Lister: m.seller, PaymentAmount: 750})
	require.NoError(t, err)
	assert.Equal(t, uint64(750), updated.PaymentAmount)

	// The old price no longer matches.
	buyer := newKey()
	m.fund(m.currency, buyer, 2000)
	_, err = m.svc.Marketplace.AcceptListing(m.ctx, &AcceptListingRequest{ID: listing.ID, Buyer: buyer, PaymentAmount: u64(1000)})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestInvalidate_DropsListing(t *testing.T) {
	m := newMarket(t)
	tm := m.claimed(domain.KindUnmanaged)
	listing := m.list(tm, 1000)

	_, err := m.svc.Custody.Invalidate(m.ctx, &InvalidateRequest{ID: tm.ID, Caller: m.seller})
	require.NoError(t, err)

	_, err = m.svc.Marketplace.GetListing(m.ctx, listing.ID)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
	assert.Equal(t, uint64(1), m.balance(tm.Mint, m.issuer))

	acct := m.account(tm.Mint, m.seller)
	assert.Nil(t, acct.Delegate)
	assert.Zero(t, acct.Balance)
}

func TestListListings(t *testing.T) {
	m := newMarket(t)
	m.list(m.claimed(domain.KindUnmanaged), 1)
	m.list(m.claimed(domain.KindManaged), 2)

	all, err := m.svc.Marketplace.ListListings(m.ctx, solana.PublicKey{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := m.svc.Marketplace.ListListings(m.ctx, m.marketplace.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	none, err := m.svc.Marketplace.ListListings(m.ctx, newKey())
	require.NoError(t, err)
	assert.Empty(t, none)
}
