package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/storage"
	"github.com/yndnr/tokvault-go/internal/telemetry/logger"
)

const (
	accountPrefix   = "acct/"
	authorityPrefix = "auth/"
)

// Account is one (mint, owner) position.
type Account struct {
	Mint            solana.PublicKey  `json:"mint"`
	Owner           solana.PublicKey  `json:"owner"`
	Balance         uint64            `json:"balance"`
	Frozen          bool              `json:"frozen"`
	Delegate        *solana.PublicKey `json:"delegate,omitempty"`
	DelegatedAmount uint64            `json:"delegated_amount,omitempty"`
}

func (a *Account) clone() *Account {
	c := *a
	if a.Delegate != nil {
		d := *a.Delegate
		c.Delegate = &d
	}
	return &c
}

// empty accounts are dropped instead of stored.
func (a *Account) empty() bool {
	return a.Balance == 0 && !a.Frozen && a.Delegate == nil
}

type accountKey struct {
	mint  solana.PublicKey
	owner solana.PublicKey
}

func (k accountKey) bytes() []byte {
	b := make([]byte, 0, len(accountPrefix)+64)
	b = append(b, accountPrefix...)
	b = append(b, k.mint[:]...)
	return append(b, k.owner[:]...)
}

func authorityKey(mint solana.PublicKey) []byte {
	return append([]byte(authorityPrefix), mint[:]...)
}

// Ledger executes custody instructions against in-memory accounts,
// optionally persisted to a KV engine.
type Ledger struct {
	mu          sync.RWMutex
	accounts    map[accountKey]*Account
	authorities map[solana.PublicKey]bool

	engine storage.KVEngine
	logger logger.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStore persists the ledger in engine.
func WithStore(engine storage.KVEngine) Option {
	return func(l *Ledger) { l.engine = engine }
}

// WithLogger sets the logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Ledger) { l.logger = lg }
}

// New creates a ledger, loading persisted accounts when a store is set.
func New(ctx context.Context, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		accounts:    make(map[accountKey]*Account),
		authorities: make(map[solana.PublicKey]bool),
		logger:      logger.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.engine != nil {
		if err := l.load(ctx); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Ledger) load(ctx context.Context) error {
	var decodeErr error
	err := l.engine.Scan(ctx, []byte(accountPrefix), func(_, value []byte) bool {
		var a Account
		if err := json.Unmarshal(value, &a); err != nil {
			decodeErr = fmt.Errorf("ledger: decode account: %w", err)
			return false
		}
		l.accounts[accountKey{a.Mint, a.Owner}] = &a
		return true
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}

	err = l.engine.Scan(ctx, []byte(authorityPrefix), func(key, _ []byte) bool {
		l.authorities[solana.PublicKeyFromBytes(key[len(authorityPrefix):])] = true
		return true
	})
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}

	l.logger.Info("ledger loaded", "accounts", len(l.accounts), "mint_authorities", len(l.authorities))
	return nil
}

// Execute applies ops in order as one atomic batch.
func (l *Ledger) Execute(ctx context.Context, ops []domain.CustodyOp) error {
	if len(ops) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &txn{base: l.accounts, touched: make(map[accountKey]*Account)}
	for i, op := range ops {
		if err := tx.apply(op); err != nil {
			var de *domain.DomainError
			if errors.As(err, &de) {
				return de.WithDetailsf("op %d (%s): %s", i, op, de.Details)
			}
			return err
		}
	}

	if err := l.persist(ctx, tx.touched); err != nil {
		return err
	}
	l.commit(tx.touched)

	l.logger.Debug("custody batch executed", "ops", len(ops), "accounts", len(tx.touched))
	return nil
}

func (l *Ledger) persist(ctx context.Context, touched map[accountKey]*Account) error {
	if l.engine == nil {
		return nil
	}
	var batch storage.Batch
	for key, acct := range touched {
		if acct.empty() {
			batch.Delete(key.bytes())
			continue
		}
		data, err := json.Marshal(acct)
		if err != nil {
			return domain.ErrStorageError.WithCause(err)
		}
		batch.Set(key.bytes(), data)
	}
	if err := l.engine.WriteBatch(ctx, &batch); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

func (l *Ledger) commit(touched map[accountKey]*Account) {
	for key, acct := range touched {
		if acct.empty() {
			delete(l.accounts, key)
		} else {
			l.accounts[key] = acct
		}
	}
}

// Mint credits amount of mint to owner. Used to seed balances.
func (l *Ledger) Mint(ctx context.Context, mint, owner solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return domain.ErrInvalidArgument.WithDetails("amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &txn{base: l.accounts, touched: make(map[accountKey]*Account)}
	acct := tx.account(accountKey{mint, owner}, true)
	if acct.Frozen {
		return domain.ErrAccountFrozen.WithDetailsf("%s/%s", mint, owner)
	}
	balance, err := domain.AddU64(acct.Balance, amount)
	if err != nil {
		return err
	}
	acct.Balance = balance

	if err := l.persist(ctx, tx.touched); err != nil {
		return err
	}
	l.commit(tx.touched)

	l.logger.Info("ledger minted", "mint", mint.String(), "owner", owner.String(), "amount", amount)
	return nil
}

// SetMintAuthority records whether custody holds mint authority for mint.
func (l *Ledger) SetMintAuthority(ctx context.Context, mint solana.PublicKey, granted bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.engine != nil {
		var err error
		if granted {
			err = l.engine.Set(ctx, authorityKey(mint), []byte{1})
		} else {
			err = l.engine.Delete(ctx, authorityKey(mint))
		}
		if err != nil {
			return domain.ErrStorageError.WithCause(err)
		}
	}
	if granted {
		l.authorities[mint] = true
	} else {
		delete(l.authorities, mint)
	}
	return nil
}

// HasMintAuthority reports whether custody holds mint authority for mint.
func (l *Ledger) HasMintAuthority(_ context.Context, mint solana.PublicKey) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.authorities[mint], nil
}

// Account returns a copy of the (mint, owner) account. Unknown accounts
// come back empty.
func (l *Ledger) Account(_ context.Context, mint, owner solana.PublicKey) (*Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if acct, ok := l.accounts[accountKey{mint, owner}]; ok {
		return acct.clone(), nil
	}
	return &Account{Mint: mint, Owner: owner}, nil
}

// Balance returns the balance of the (mint, owner) account.
func (l *Ledger) Balance(ctx context.Context, mint, owner solana.PublicKey) (uint64, error) {
	acct, err := l.Account(ctx, mint, owner)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Close closes the attached store, if any.
func (l *Ledger) Close() error {
	if l.engine == nil {
		return nil
	}
	return l.engine.Close()
}
