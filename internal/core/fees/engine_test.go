package fees

import (
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

func creators(shares ...uint8) []domain.Creator {
	out := make([]domain.Creator, len(shares))
	for i, s := range shares {
		out[i] = domain.Creator{Address: solana.NewWallet().PublicKey(), Share: s}
	}
	return out
}

func amounts(payouts []domain.CreatorPayout) []uint64 {
	out := make([]uint64, len(payouts))
	for i, p := range payouts {
		out[i] = p.Amount
	}
	return out
}

func mustCompute(t *testing.T, p uint64, cfg Config) *domain.FeeBreakdown {
	t.Helper()
	b, err := Compute(p, cfg)
	if err != nil {
		t.Fatalf("Compute(%d) error = %v", p, err)
	}
	return b
}

func TestCompute_MakerTaker(t *testing.T) {
	b := mustCompute(t, 1000, Config{MakerFeeBasisPoints: 500, TakerFeeBasisPoints: 300})

	tests := []struct {
		name      string
		got, want uint64
	}{
		{"MakerFee", b.MakerFee, 50},
		{"TakerFee", b.TakerFee, 30},
		{"TotalFees", b.TotalFees, 80},
		{"FeeCollectorAmount", b.FeeCollectorAmount, 80},
		{"SellerProceeds", b.SellerProceeds, 950},
		{"BuyerTotal", b.BuyerTotal, 1030},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestDistribute(t *testing.T) {
	tests := []struct {
		name   string
		total  uint64
		shares []uint8
		want   []uint64
	}{
		{"even split", 100, []uint8{24, 26, 8, 19, 23}, []uint64{24, 26, 8, 19, 23}},
		{"remainder to first", 101, []uint8{24, 26, 8, 19, 23}, []uint64{25, 26, 8, 19, 23}},
		{"remainder left to right", 10, []uint8{34, 33, 33}, []uint64{4, 3, 3}},
		{"remainder stops short of last", 2, []uint8{34, 33, 33}, []uint64{1, 1, 0}},
		{"single creator", 12345, []uint8{100}, []uint64{12345}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payouts, err := Distribute(tt.total, creators(tt.shares...))
			if err != nil {
				t.Fatalf("Distribute() error = %v", err)
			}
			if got := amounts(payouts); !slices.Equal(got, tt.want) {
				t.Errorf("Distribute(%d) = %v, want %v", tt.total, got, tt.want)
			}
		})
	}
}

func TestDistribute_RejectsBadShares(t *testing.T) {
	if _, err := Distribute(100, creators(50, 49)); !errors.Is(err, domain.ErrInvalidFeeConfiguration) {
		t.Errorf("shares summing to 99: error = %v, want %v", err, domain.ErrInvalidFeeConfiguration)
	}

	dup := creators(50, 50)
	dup[1].Address = dup[0].Address
	if _, err := Distribute(100, dup); !errors.Is(err, domain.ErrInvalidFeeConfiguration) {
		t.Errorf("duplicate creator: error = %v, want %v", err, domain.ErrInvalidFeeConfiguration)
	}
}

func TestCompute_ZeroCreatorsGoesToCollector(t *testing.T) {
	b := mustCompute(t, 10000, Config{
		MakerFeeBasisPoints:         250,
		TakerFeeBasisPoints:         250,
		SellerFeeBasisPoints:        500,
		IncludeSellerFeeBasisPoints: true,
		RoyaltyFeeShare:             5000,
	})

	if b.TotalCreatorsFee != 750 {
		t.Errorf("TotalCreatorsFee = %d, want 750", b.TotalCreatorsFee)
	}
	if len(b.CreatorPayouts) != 0 {
		t.Errorf("CreatorPayouts = %v, want none", b.CreatorPayouts)
	}
	if b.FeeCollectorAmount != 1000 || b.TotalFees != 1000 {
		t.Errorf("FeeCollectorAmount, TotalFees = %d, %d, want 1000, 1000", b.FeeCollectorAmount, b.TotalFees)
	}
	if want := uint64(10000 - 250 - 500); b.SellerProceeds != want {
		t.Errorf("SellerProceeds = %d, want %d", b.SellerProceeds, want)
	}
}

func TestCompute_RoyaltiesAndBuySide(t *testing.T) {
	b := mustCompute(t, 1001, Config{
		MakerFeeBasisPoints:         500,
		TakerFeeBasisPoints:         500,
		SellerFeeBasisPoints:        1000,
		IncludeSellerFeeBasisPoints: true,
		RoyaltyFeeShare:             5000,
		BuySideFeeShare:             100,
		Creators:                    creators(60, 40),
	})

	// maker 50, taker 50, seller 100, royalty floor(100*0.5)=50
	if got := amounts(b.CreatorPayouts); !slices.Equal(got, []uint64{90, 60}) {
		t.Errorf("CreatorPayouts = %v, want [90 60]", got)
	}
	tests := []struct {
		name      string
		got, want uint64
	}{
		{"TotalCreatorsFee", b.TotalCreatorsFee, 150},
		{"BuySideFee", b.BuySideFee, 10},
		{"FeeCollectorAmount", b.FeeCollectorAmount, 50},
		{"TotalFees", b.TotalFees, 210},
		{"SellerProceeds", b.SellerProceeds, 1001 - 50 - 100 - 10},
		{"BuyerTotal", b.BuyerTotal, 1051},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero", Config{}, false},
		{"all in range", Config{MakerFeeBasisPoints: 5000, TakerFeeBasisPoints: 5000}, false},
		{"maker over 10000", Config{MakerFeeBasisPoints: 10001}, true},
		{"royalty share over 10000", Config{RoyaltyFeeShare: 10001}, true},
		{"fee side over 100%", Config{MakerFeeBasisPoints: 6000, TakerFeeBasisPoints: 3000, BuySideFeeShare: 1001}, true},
		{"seller side over 100%", Config{MakerFeeBasisPoints: 6000, SellerFeeBasisPoints: 5000, IncludeSellerFeeBasisPoints: true}, true},
		{"seller bp ignored when excluded", Config{MakerFeeBasisPoints: 6000, SellerFeeBasisPoints: 5000}, false},
		{"shares not 100", Config{Creators: creators(10, 20)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidFeeConfiguration) {
				t.Errorf("Validate() error = %v, want %v", err, domain.ErrInvalidFeeConfiguration)
			}
		})
	}
}

func TestCompute_Overflow(t *testing.T) {
	// The buyer total must not wrap.
	if _, err := Compute(math.MaxUint64, Config{TakerFeeBasisPoints: 100}); !errors.Is(err, domain.ErrArithmeticOverflow) {
		t.Errorf("Compute(MaxUint64) error = %v, want %v", err, domain.ErrArithmeticOverflow)
	}

	b := mustCompute(t, math.MaxUint64, Config{MakerFeeBasisPoints: 10000})
	if b.MakerFee != math.MaxUint64 {
		t.Errorf("MakerFee = %d, want %d", b.MakerFee, uint64(math.MaxUint64))
	}
	if b.SellerProceeds != 0 {
		t.Errorf("SellerProceeds = %d, want 0", b.SellerProceeds)
	}
}

// Conservation and remainder bound over random inputs.
func TestCompute_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	shareSets := [][]uint8{nil, {100}, {50, 50}, {24, 26, 8, 19, 23}, {1, 1, 98}, {33, 33, 34}}

	for i := 0; i < 5000; i++ {
		cfg := Config{
			MakerFeeBasisPoints:         uint16(rng.Intn(4000)),
			TakerFeeBasisPoints:         uint16(rng.Intn(4000)),
			SellerFeeBasisPoints:        uint16(rng.Intn(5000)),
			IncludeSellerFeeBasisPoints: rng.Intn(2) == 0,
			RoyaltyFeeShare:             uint16(rng.Intn(10001)),
			BuySideFeeShare:             uint16(rng.Intn(1000)),
			Creators:                    creators(shareSets[rng.Intn(len(shareSets))]...),
		}
		p := uint64(rng.Int63n(1 << 40))

		b, err := Compute(p, cfg)
		if err != nil {
			if !errors.Is(err, domain.ErrInvalidFeeConfiguration) {
				t.Fatalf("Compute(%d, %+v) error = %v", p, cfg, err)
			}
			continue
		}

		var paid uint64
		for _, po := range b.CreatorPayouts {
			paid += po.Amount
		}
		if got := paid + b.FeeCollectorAmount + b.BuySideFee; got != b.TotalFees {
			t.Fatalf("payouts+collector+buy side = %d, want TotalFees %d (%+v)", got, b.TotalFees, cfg)
		}
		if got := b.SellerProceeds + b.TotalFees; got != b.BuyerTotal {
			t.Fatalf("proceeds+fees = %d, want BuyerTotal %d", got, b.BuyerTotal)
		}
		if !cfg.IncludeSellerFeeBasisPoints && b.TotalFees > p {
			t.Fatalf("TotalFees = %d exceeds payment %d", b.TotalFees, p)
		}

		if len(cfg.Creators) == 0 {
			continue
		}
		if paid != b.TotalCreatorsFee {
			t.Fatalf("creator payouts = %d, want TotalCreatorsFee %d", paid, b.TotalCreatorsFee)
		}
		var bumped, baseSum uint64
		for j, c := range cfg.Creators {
			base := b.TotalCreatorsFee * uint64(c.Share) / 100
			baseSum += base
			switch b.CreatorPayouts[j].Amount {
			case base + 1:
				bumped++
			case base:
			default:
				t.Fatalf("creator %d payout = %d, want %d or %d", j, b.CreatorPayouts[j].Amount, base, base+1)
			}
		}
		if bumped != b.TotalCreatorsFee-baseSum {
			t.Fatalf("bumped creators = %d, want %d", bumped, b.TotalCreatorsFee-baseSum)
		}
		if bumped >= uint64(len(cfg.Creators)) {
			t.Fatalf("bumped creators = %d, want fewer than %d", bumped, len(cfg.Creators))
		}
	}
}

func TestTransfers(t *testing.T) {
	b := mustCompute(t, 1000, Config{
		MakerFeeBasisPoints: 500, TakerFeeBasisPoints: 500,
		RoyaltyFeeShare: 10000, BuySideFeeShare: 100, Creators: creators(50, 50),
	})

	mint := solana.NewWallet().PublicKey()
	party := Party{
		Payer:        solana.NewWallet().PublicKey(),
		Payee:        solana.NewWallet().PublicKey(),
		FeeCollector: solana.NewWallet().PublicKey(),
	}
	ops := Transfers(b, mint, party)
	if len(ops) == 0 {
		t.Fatal("Transfers() returned no ops")
	}

	var total uint64
	for i, op := range ops {
		if op.Kind != domain.OpTransfer || !op.Owner.Equals(party.Payer) || op.Amount == 0 {
			t.Errorf("op %d = %+v, want a non-zero transfer from the payer", i, op)
		}
		total += op.Amount
	}
	if total != b.BuyerTotal {
		t.Errorf("transferred %d, want BuyerTotal %d", total, b.BuyerTotal)
	}
	// Full royalty share: the collector only receives the buy side fee.
	last := ops[len(ops)-1]
	if !last.To.Equals(party.FeeCollector) || last.Amount != b.BuySideFee {
		t.Errorf("last op = %+v, want %d to the fee collector", last, b.BuySideFee)
	}
}
