package service

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/telemetry/logger"
	"github.com/yndnr/tokvault-go/pkg/cmap"
)

// Repository is the storage interface for one record kind.
//
// Update succeeds only when the stored version equals expectedVersion and
// writes the new version back into rec. Get returns copies.
type Repository[T any] interface {
	// Create stores a new record; it fails if the identity is taken.
	Create(ctx context.Context, rec *T) error

	// Get retrieves a record by identity.
	Get(ctx context.Context, id solana.PublicKey) (*T, error)

	// Update replaces a record (with optimistic locking).
	Update(ctx context.Context, rec *T, expectedVersion uint64) error

	// Delete removes a record by identity.
	Delete(ctx context.Context, id solana.PublicKey) error

	// List returns the records matching match, ordered by identity.
	List(ctx context.Context, match func(*T) bool) ([]*T, error)
}

// TokenManagerRepository adds indexed queries to the token manager table.
type TokenManagerRepository interface {
	Repository[domain.TokenManager]

	// Find returns token managers matching filter, ordered by identity.
	Find(ctx context.Context, filter domain.TokenManagerFilter) ([]*domain.TokenManager, error)
}

// Repositories groups every record table.
type Repositories struct {
	TokenManagers   TokenManagerRepository
	PaymentManagers Repository[domain.PaymentManager]
	MintMetadata    Repository[domain.MintMetadata]
	Marketplaces    Repository[domain.Marketplace]
	Listings        Repository[domain.Listing]
}

// Custody is the asset custody primitive.
type Custody interface {
	// Execute applies ops atomically: all of them or none.
	Execute(ctx context.Context, ops []domain.CustodyOp) error

	// HasMintAuthority reports whether mint's authority is delegated.
	HasMintAuthority(ctx context.Context, mint solana.PublicKey) (bool, error)
}

// Clock supplies the current time in unix seconds. It must never go backwards.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() int64 { return time.Now().Unix() }

// ManualClock is a Clock moved by hand.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock starts a clock at now.
func NewManualClock(now int64) *ManualClock {
	return &ManualClock{now: now}
}

// Now implements Clock.
func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward. Negative steps are ignored.
func (c *ManualClock) Advance(seconds int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds > 0 {
		c.now += seconds
	}
	return c.now
}

// Observer receives every committed receipt.
type Observer interface {
	Observe(r *domain.Receipt)
}

type nopObserver struct{}

func (nopObserver) Observe(*domain.Receipt) {}

// Deps holds what every service needs.
type Deps struct {
	Repos    Repositories
	Custody  Custody
	Clock    Clock
	Logger   logger.Logger
	Observer Observer

	// DefaultFeeCollector receives fees of payment managers created
	// without an explicit collector.
	DefaultFeeCollector solana.PublicKey
}

// base is shared by the services: dependencies plus the per-record locks
// that serialize transitions on one token manager.
type base struct {
	repos   Repositories
	custody Custody
	clock   Clock
	logger  logger.Logger
	obs     Observer
	locks   *cmap.Locker[solana.PublicKey]

	defaultFeeCollector solana.PublicKey
}

func newBase(d Deps) *base {
	b := &base{
		repos:               d.Repos,
		custody:             d.Custody,
		clock:               d.Clock,
		logger:              d.Logger,
		obs:                 d.Observer,
		locks:               cmap.NewLocker[solana.PublicKey](),
		defaultFeeCollector: d.DefaultFeeCollector,
	}
	if b.clock == nil {
		b.clock = SystemClock{}
	}
	if b.logger == nil {
		b.logger = logger.Default()
	}
	if b.obs == nil {
		b.obs = nopObserver{}
	}
	return b
}

// Services bundles the custody, payment and marketplace services over one
// set of dependencies.
type Services struct {
	Custody     *CustodyService
	Payments    *PaymentService
	Marketplace *MarketplaceService
}

// New creates all services sharing one lock table.
func New(d Deps) *Services {
	b := newBase(d)
	return &Services{
		Custody:     &CustodyService{base: b},
		Payments:    &PaymentService{base: b},
		Marketplace: &MarketplaceService{base: b},
	}
}
