package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yndnr/tokvault-go/internal/telemetry/logger"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Handler runs shutdown hooks once the process is asked to stop.
type Handler struct {
	timeout time.Duration
	logger  logger.Logger

	mu    sync.Mutex
	hooks []hook

	trigger chan error
	once    sync.Once
	done    chan struct{}
	signals []os.Signal
}

// NewHandler creates a handler whose hooks share timeout. A nil logger
// uses the default.
func NewHandler(timeout time.Duration, lg logger.Logger) *Handler {
	if lg == nil {
		lg = logger.Default()
	}
	return &Handler{
		timeout: timeout,
		logger:  lg,
		hooks:   make([]hook, 0),
		trigger: make(chan error, 1),
		done:    make(chan struct{}),
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// OnShutdown registers a named hook. Hooks run in reverse order of
// registration.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Trigger starts shutdown without a signal. A non-nil cause is returned
// from Wait. Only the first call has an effect.
func (h *Handler) Trigger(cause error) {
	select {
	case h.trigger <- cause:
	default:
	}
}

// Wait blocks until a signal, Trigger or ctx cancellation, then runs
// every hook. The result joins the trigger cause and all hook errors.
func (h *Handler) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, h.signals...)
	defer signal.Stop(sigCh)

	var cause error
	select {
	case sig := <-sigCh:
		h.logger.Info("shutdown signal received", "signal", sig.String())
	case cause = <-h.trigger:
		if cause != nil {
			h.logger.Error("shutting down after failure", "error", cause)
		}
	case <-ctx.Done():
		h.logger.Info("shutdown requested", "reason", ctx.Err())
	}

	return errors.Join(cause, h.run())
}

func (h *Handler) run() error {
	var errs []error
	h.once.Do(func() {
		defer close(h.done)

		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		h.mu.Lock()
		hooks := make([]hook, len(h.hooks))
		copy(hooks, h.hooks)
		h.mu.Unlock()

		for i := len(hooks) - 1; i >= 0; i-- {
			hk := hooks[i]
			start := time.Now()
			if err := hk.fn(ctx); err != nil {
				h.logger.Error("shutdown hook failed", "hook", hk.name, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", hk.name, err))
				continue
			}
			h.logger.Debug("shutdown hook finished", "hook", hk.name, "elapsed", time.Since(start))
		}
	})
	return errors.Join(errs...)
}

// Done is closed once every hook has returned.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
