package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/robfig/cron/v3"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/core/service"
	"github.com/yndnr/tokvault-go/internal/telemetry/logger"
	"github.com/yndnr/tokvault-go/internal/telemetry/metric"
)

// DefaultSpec runs the crank every 10 seconds.
const DefaultSpec = "*/10 * * * * *"

// DefaultBatchSize caps evaluations per pass.
const DefaultBatchSize = 500

// Finder lists token managers.
type Finder interface {
	Find(ctx context.Context, filter domain.TokenManagerFilter) ([]*domain.TokenManager, error)
}

// Evaluator runs the policies of one token manager.
type Evaluator interface {
	Evaluate(ctx context.Context, id solana.PublicKey) (*service.EvaluateResponse, error)
}

// Config holds crank settings.
type Config struct {
	// Spec is a cron expression with a leading seconds field.
	Spec string
	// BatchSize caps evaluations per pass.
	BatchSize int
}

// Result summarizes one pass.
type Result struct {
	Scanned   int
	Evaluated int
	Fired     int
	Failed    int
}

// Crank periodically evaluates token managers whose policies have fired.
type Crank struct {
	finder  Finder
	eval    Evaluator
	clock   service.Clock
	logger  logger.Logger
	metrics *metric.Registry

	spec      string
	batchSize int

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// Option configures a Crank.
type Option func(*Crank)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Crank) { c.logger = l }
}

// WithMetrics counts passes and evaluations.
func WithMetrics(r *metric.Registry) Option {
	return func(c *Crank) { c.metrics = r }
}

// WithClock sets the clock used to pre-select due managers.
func WithClock(clock service.Clock) Option {
	return func(c *Crank) { c.clock = clock }
}

// New creates a crank. It does nothing until Start.
func New(finder Finder, eval Evaluator, cfg Config, opts ...Option) *Crank {
	c := &Crank{
		finder:    finder,
		eval:      eval,
		clock:     service.SystemClock{},
		logger:    logger.Default(),
		spec:      cfg.Spec,
		batchSize: cfg.BatchSize,
	}
	if c.spec == "" {
		c.spec = DefaultSpec
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start schedules the crank. Passes never overlap; a tick that arrives
// while a pass is running is skipped.
func (c *Crank) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("crank already running")
	}

	cl := cronLogger{c.logger}
	sched := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	runCtx, cancel := context.WithCancel(ctx)
	if _, err := sched.AddFunc(c.spec, func() { c.tick(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("crank: invalid spec %q: %w", c.spec, err)
	}

	sched.Start()
	c.cron = sched
	c.cancel = cancel
	c.running = true
	c.logger.Info("crank started", "spec", c.spec, "batch_size", c.batchSize)
	return nil
}

// Stop cancels the running pass and waits for it to return.
func (c *Crank) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.cancel()
	<-c.cron.Stop().Done()
	c.running = false
	c.logger.Info("crank stopped")
}

func (c *Crank) tick(ctx context.Context) {
	res, err := c.RunOnce(ctx)
	if err != nil {
		c.logger.Error("crank pass failed", "error", err)
		return
	}
	if res.Fired > 0 || res.Failed > 0 {
		c.logger.Info("crank pass",
			"scanned", res.Scanned,
			"fired", res.Fired,
			"failed", res.Failed)
	}
}

// RunOnce performs a single pass.
func (c *Crank) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	now := c.clock.Now()

	var due []solana.PublicKey
	for _, st := range []domain.State{domain.StateIssued, domain.StateClaimed} {
		state := st
		managers, err := c.finder.Find(ctx, domain.TokenManagerFilter{State: &state})
		if err != nil {
			return res, err
		}
		res.Scanned += len(managers)
		for _, tm := range managers {
			if _, fired := tm.Evaluate(now); fired {
				due = append(due, tm.ID)
			}
		}
	}
	if len(due) > c.batchSize {
		due = due[:c.batchSize]
	}

	for _, id := range due {
		if err := ctx.Err(); err != nil {
			break
		}
		res.Evaluated++
		resp, err := c.eval.Evaluate(ctx, id)
		switch {
		case err != nil:
			// Another transition may have ended the manager since the scan.
			if !domain.IsDomainError(err, domain.ErrAlreadyInvalidated.Code) &&
				!domain.IsDomainError(err, domain.ErrTokenManagerNotFound.Code) {
				res.Failed++
				c.logger.Warn("crank evaluation failed", "token_manager", id.String(), "error", err)
			}
		case resp.Fired:
			res.Fired++
		}
	}

	if c.metrics != nil {
		c.metrics.CrankRuns.Inc()
		c.metrics.CrankEvaluations.Add(float64(res.Evaluated))
		c.metrics.CrankInvalidations.Add(float64(res.Fired))
		c.metrics.CrankErrors.Add(float64(res.Failed))
	}
	return res, nil
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
