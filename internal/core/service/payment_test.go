package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/fees"
)

func TestCreatePaymentManager(t *testing.T) {
	f := newFixture(t)
	authority := newKey()

	pm, err := f.svc.Payments.CreatePaymentManager(f.ctx, &CreatePaymentManagerRequest{
		Name:                "default",
		Authority:           authority,
		MakerFeeBasisPoints: 500,
		TakerFeeBasisPoints: 300,
	})
	require.NoError(t, err)

	want, _, err := domain.PaymentManagerAddress("default")
	require.NoError(t, err)
	assert.Equal(t, want, pm.ID)
	assert.Equal(t, f.collector, pm.FeeCollector)

	got, err := f.svc.Payments.GetPaymentManager(f.ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, uint16(300), got.TakerFeeBasisPoints)

	_, err = f.svc.Payments.CreatePaymentManager(f.ctx, &CreatePaymentManagerRequest{Name: "default", Authority: authority})
	assert.ErrorIs(t, err, domain.ErrPaymentManagerConflict)

	_, err = f.svc.Payments.CreatePaymentManager(f.ctx, &CreatePaymentManagerRequest{
		Name: "greedy", Authority: authority, MakerFeeBasisPoints: 6000, TakerFeeBasisPoints: 5000,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFeeConfiguration)

	_, err = f.svc.Payments.CreatePaymentManager(f.ctx, &CreatePaymentManagerRequest{Name: "", Authority: authority})
	assert.ErrorIs(t, err, domain.ErrMissingArgument)

	all, err := f.svc.Payments.ListPaymentManagers(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdatePaymentManager(t *testing.T) {
	f := newFixture(t)
	authority := newKey()
	pm, err := f.svc.Payments.CreatePaymentManager(f.ctx, &CreatePaymentManagerRequest{Name: "pm", Authority: authority})
	require.NoError(t, err)

	_, err = f.svc.Payments.UpdatePaymentManager(f.ctx, &UpdatePaymentManagerRequest{
		ID: pm.ID, Authority: newKey(), MakerFeeBasisPoints: u16(100),
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	next := newKey()
	updated, err := f.svc.Payments.UpdatePaymentManager(f.ctx, &UpdatePaymentManagerRequest{
		ID: pm.ID, Authority: authority, MakerFeeBasisPoints: u16(100), NewAuthority: key(next),
	})
	require.NoError(t, err)
	assert.Equal(t, uint16(100), updated.MakerFeeBasisPoints)
	assert.Equal(t, next, updated.Authority)
	assert.Greater(t, updated.Version, pm.Version)

	_, err = f.svc.Payments.UpdatePaymentManager(f.ctx, &UpdatePaymentManagerRequest{
		ID: pm.ID, Authority: next, TakerFeeBasisPoints: u16(10001),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFeeConfiguration)
}

func TestRegisterMint(t *testing.T) {
	f := newFixture(t)
	mint := newKey()
	a, b := newKey(), newKey()

	_, err := f.svc.Payments.RegisterMint(f.ctx, &RegisterMintRequest{
		Mint: mint, SellerFeeBasisPoints: 500,
		Creators: []domain.Creator{{Address: a, Share: 60}, {Address: b, Share: 30}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFeeConfiguration)

	_, err = f.svc.Payments.RegisterMint(f.ctx, &RegisterMintRequest{
		Mint: mint, SellerFeeBasisPoints: 500,
		Creators: []domain.Creator{{Address: a, Share: 60}, {Address: b, Share: 40}},
	})
	require.NoError(t, err)

	// Registering again replaces the terms.
	_, err = f.svc.Payments.RegisterMint(f.ctx, &RegisterMintRequest{Mint: mint, SellerFeeBasisPoints: 250})
	require.NoError(t, err)

	md, err := f.svc.Payments.GetMint(f.ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, uint16(250), md.SellerFeeBasisPoints)
	assert.Empty(t, md.Creators)

	_, err = f.svc.Payments.GetMint(f.ctx, newKey())
	assert.ErrorIs(t, err, domain.ErrMintNotRegistered)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	pm, err := f.svc.Payments.CreatePaymentManager(f.ctx, &CreatePaymentManagerRequest{
		Name:                        "quote",
		Authority:                   newKey(),
		MakerFeeBasisPoints:         500,
		TakerFeeBasisPoints:         300,
		IncludeSellerFeeBasisPoints: true,
	})
	require.NoError(t, err)

	// Unregistered mint: no royalties.
	b, err := f.svc.Payments.Quote(f.ctx, &QuoteRequest{PaymentManager: pm.ID, Mint: newKey(), Amount: 1000})
	require.NoError(t, err)
	assert.Equal(t, uint64(50), b.MakerFee)
	assert.Equal(t, uint64(30), b.TakerFee)
	assert.Equal(t, uint64(80), b.TotalFees)
	assert.Zero(t, b.SellerFee)

	mint := newKey()
	_, err = f.svc.Payments.RegisterMint(f.ctx, &RegisterMintRequest{
		Mint: mint, SellerFeeBasisPoints: 1000,
		Creators: []domain.Creator{{Address: newKey(), Share: 100}},
	})
	require.NoError(t, err)

	b, err = f.svc.Payments.Quote(f.ctx, &QuoteRequest{PaymentManager: pm.ID, Mint: mint, Amount: 1000})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), b.SellerFee)
	assert.Equal(t, uint64(180), b.TotalFees)
	assert.Equal(t, uint64(850), b.SellerProceeds)
	assert.Equal(t, uint64(1030), b.BuyerTotal)

	_, err = f.svc.Payments.Quote(f.ctx, &QuoteRequest{PaymentManager: newKey(), Amount: 1})
	assert.ErrorIs(t, err, domain.ErrPaymentManagerNotFound)
}

func TestComputeFees(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Payments.ComputeFees(1000, fees.Config{MakerFeeBasisPoints: 500, TakerFeeBasisPoints: 300})
	require.NoError(t, err)
	assert.Equal(t, uint64(80), b.TotalFees)

	_, err = f.svc.Payments.ComputeFees(1000, fees.Config{MakerFeeBasisPoints: 10001})
	assert.ErrorIs(t, err, domain.ErrInvalidFeeConfiguration)
}
