package domain

import "github.com/gagliardetto/solana-go"

// CreatorPayout is the amount owed to one creator.
type CreatorPayout struct {
	Creator solana.PublicKey `json:"creator"`
	Amount  uint64           `json:"amount"`
}

// FeeBreakdown is the exact split of one payment.
//
// Conservation: sum(CreatorPayouts) + FeeCollectorAmount + BuySideFee == TotalFees,
// and BuyerTotal == SellerProceeds + TotalFees.
type FeeBreakdown struct {
	PaymentAmount      uint64          `json:"payment_amount"`
	MakerFee           uint64          `json:"maker_fee"`
	TakerFee           uint64          `json:"taker_fee"`
	SellerFee          uint64          `json:"seller_fee"`
	BuySideFee         uint64          `json:"buy_side_fee"`
	TotalFees          uint64          `json:"total_fees"`
	TotalCreatorsFee   uint64          `json:"total_creators_fee"`
	CreatorPayouts     []CreatorPayout `json:"creator_payouts"`
	FeeCollectorAmount uint64          `json:"fee_collector_amount"`
	SellerProceeds     uint64          `json:"seller_proceeds"`
	BuyerTotal         uint64          `json:"buyer_total"`
}

// Receipt records one committed transition.
type Receipt struct {
	ID           string           `json:"id"`
	Operation    Operation        `json:"operation"`
	TokenManager solana.PublicKey `json:"token_manager"`
	State        State            `json:"state"`
	Trigger      *Trigger         `json:"trigger,omitempty"`
	Outcome      Outcome          `json:"outcome,omitempty"`
	CustodyOps   []CustodyOp      `json:"custody_ops,omitempty"`
	Fees         *FeeBreakdown    `json:"fees,omitempty"`
	At           int64            `json:"at"`
}
