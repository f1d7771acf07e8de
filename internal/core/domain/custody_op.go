package domain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// CustodyOpKind is a custody primitive instruction.
type CustodyOpKind string

const (
	OpTransfer   CustodyOpKind = "transfer"
	OpFreeze     CustodyOpKind = "freeze"
	OpThaw       CustodyOpKind = "thaw"
	OpDelegate   CustodyOpKind = "delegate"
	OpUndelegate CustodyOpKind = "undelegate"
)

// CustodyOp is one instruction for the custody primitive.
// Accounts are addressed by (Mint, Owner).
type CustodyOp struct {
	Kind  CustodyOpKind    `json:"kind"`
	Mint  solana.PublicKey `json:"mint"`
	Owner solana.PublicKey `json:"owner"`

	// To is the destination owner of a transfer.
	To solana.PublicKey `json:"to"`

	// Delegate is the authority of a delegate/undelegate.
	Delegate solana.PublicKey `json:"delegate"`

	Amount uint64 `json:"amount,omitempty"`
}

// Transfer moves amount of mint from one owner to another.
func Transfer(mint, from, to solana.PublicKey, amount uint64) CustodyOp {
	return CustodyOp{Kind: OpTransfer, Mint: mint, Owner: from, To: to, Amount: amount}
}

// Freeze locks an account.
func Freeze(mint, owner solana.PublicKey) CustodyOp {
	return CustodyOp{Kind: OpFreeze, Mint: mint, Owner: owner}
}

// Thaw unlocks an account.
func Thaw(mint, owner solana.PublicKey) CustodyOp {
	return CustodyOp{Kind: OpThaw, Mint: mint, Owner: owner}
}

// Delegate grants an authority control over amount of an account.
func Delegate(mint, owner, delegate solana.PublicKey, amount uint64) CustodyOp {
	return CustodyOp{Kind: OpDelegate, Mint: mint, Owner: owner, Delegate: delegate, Amount: amount}
}

// Undelegate revokes a delegation. Delegate and amount record what is revoked.
func Undelegate(mint, owner, delegate solana.PublicKey, amount uint64) CustodyOp {
	return CustodyOp{Kind: OpUndelegate, Mint: mint, Owner: owner, Delegate: delegate, Amount: amount}
}

// Inverse returns the instruction that undoes op.
func (op CustodyOp) Inverse() CustodyOp {
	switch op.Kind {
	case OpTransfer:
		return Transfer(op.Mint, op.To, op.Owner, op.Amount)
	case OpFreeze:
		return Thaw(op.Mint, op.Owner)
	case OpThaw:
		return Freeze(op.Mint, op.Owner)
	case OpDelegate:
		return Undelegate(op.Mint, op.Owner, op.Delegate, op.Amount)
	case OpUndelegate:
		return Delegate(op.Mint, op.Owner, op.Delegate, op.Amount)
	}
	return op
}

// InverseOps undoes a batch: inverse instructions in reverse order.
func InverseOps(ops []CustodyOp) []CustodyOp {
	out := make([]CustodyOp, 0, len(ops))
	for i := len(ops) - 1; i >= 0; i-- {
		out = append(out, ops[i].Inverse())
	}
	return out
}

func (op CustodyOp) String() string {
	switch op.Kind {
	case OpTransfer:
		return fmt.Sprintf("transfer %d %s %s->%s", op.Amount, op.Mint, op.Owner, op.To)
	case OpDelegate, OpUndelegate:
		return fmt.Sprintf("%s %s/%s to %s", op.Kind, op.Mint, op.Owner, op.Delegate)
	}
	return fmt.Sprintf("%s %s/%s", op.Kind, op.Mint, op.Owner)
}
