package ledger

import (
	"github.com/yndnr/tokvault-go/internal/core/domain"
)

// txn stages account changes over base without mutating it.
type txn struct {
	base    map[accountKey]*Account
	touched map[accountKey]*Account
}

// account returns the staged copy of key, creating an empty account
// when create is set. Returns nil for a missing account otherwise.
func (t *txn) account(key accountKey, create bool) *Account {
	if acct, ok := t.touched[key]; ok {
		return acct
	}
	if acct, ok := t.base[key]; ok {
		c := acct.clone()
		t.touched[key] = c
		return c
	}
	if !create {
		return nil
	}
	acct := &Account{Mint: key.mint, Owner: key.owner}
	t.touched[key] = acct
	return acct
}

func (t *txn) existing(op domain.CustodyOp) (*Account, error) {
	acct := t.account(accountKey{op.Mint, op.Owner}, false)
	if acct == nil {
		return nil, domain.ErrCustody.WithDetails("no such account")
	}
	return acct, nil
}

func (t *txn) apply(op domain.CustodyOp) error {
	switch op.Kind {
	case domain.OpTransfer:
		return t.transfer(op)
	case domain.OpFreeze:
		acct, err := t.existing(op)
		if err != nil {
			return err
		}
		if acct.Frozen {
			return domain.ErrCustody.WithDetails("account already frozen")
		}
		acct.Frozen = true
	case domain.OpThaw:
		acct, err := t.existing(op)
		if err != nil {
			return err
		}
		if !acct.Frozen {
			return domain.ErrCustody.WithDetails("account not frozen")
		}
		acct.Frozen = false
	case domain.OpDelegate:
		acct, err := t.existing(op)
		if err != nil {
			return err
		}
		switch {
		case op.Delegate.IsZero():
			return domain.ErrCustody.WithDetails("delegate is required")
		case acct.Frozen:
			return domain.ErrAccountFrozen.WithDetails("account frozen")
		case acct.Delegate != nil:
			return domain.ErrCustody.WithDetails("account already delegated")
		case op.Amount == 0 || op.Amount > acct.Balance:
			return domain.ErrInsufficientBalance.WithDetailsf("delegate %d of %d", op.Amount, acct.Balance)
		}
		d := op.Delegate
		acct.Delegate = &d
		acct.DelegatedAmount = op.Amount
	case domain.OpUndelegate:
		acct, err := t.existing(op)
		if err != nil {
			return err
		}
		switch {
		case acct.Frozen:
			return domain.ErrAccountFrozen.WithDetails("account frozen")
		case acct.Delegate == nil || !acct.Delegate.Equals(op.Delegate):
			return domain.ErrCustody.WithDetails("not delegated to this authority")
		}
		acct.Delegate = nil
		acct.DelegatedAmount = 0
	default:
		return domain.ErrCustody.WithDetailsf("unknown instruction %q", op.Kind)
	}
	return nil
}

func (t *txn) transfer(op domain.CustodyOp) error {
	switch {
	case op.Amount == 0:
		return domain.ErrCustody.WithDetails("zero amount")
	case op.Owner.Equals(op.To):
		return domain.ErrCustody.WithDetails("source and destination are the same")
	}

	src := t.account(accountKey{op.Mint, op.Owner}, false)
	if src == nil || src.Balance < op.Amount {
		var have uint64
		if src != nil {
			have = src.Balance
		}
		return domain.ErrInsufficientBalance.WithDetailsf("need %d, have %d", op.Amount, have)
	}
	if src.Frozen {
		return domain.ErrAccountFrozen.WithDetails("source frozen")
	}
	if src.Delegate != nil && src.Balance-op.Amount < src.DelegatedAmount {
		return domain.ErrCustody.WithDetails("transfer would leave delegated amount uncovered")
	}

	dst := t.account(accountKey{op.Mint, op.To}, true)
	if dst.Frozen {
		return domain.ErrAccountFrozen.WithDetails("destination frozen")
	}
	balance, err := domain.AddU64(dst.Balance, op.Amount)
	if err != nil {
		return err
	}

	src.Balance -= op.Amount
	dst.Balance = balance
	return nil
}
