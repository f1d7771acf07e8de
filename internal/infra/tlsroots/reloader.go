package tlsroots

import (
	"context"
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/tokvault-go/internal/telemetry/logger"
)

// DefaultDebounce coalesces the writes of a certificate rotation.
const DefaultDebounce = 500 * time.Millisecond

// Reloader serves a key pair and reloads it when either file changes.
// A failed reload keeps the previous certificate.
type Reloader struct {
	certFile string
	keyFile  string
	logger   logger.Logger
	debounce time.Duration

	mu   sync.RWMutex
	cert *tls.Certificate
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ReloaderOption {
	return func(r *Reloader) { r.logger = l }
}

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) ReloaderOption {
	return func(r *Reloader) { r.debounce = d }
}

// NewReloader loads the key pair once.
func NewReloader(certFile, keyFile string, opts ...ReloaderOption) (*Reloader, error) {
	r := &Reloader{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   logger.Default(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload reads the key pair from disk.
func (r *Reloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()
	return nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// ServerConfig returns a server TLS config backed by r.
func (r *Reloader) ServerConfig() *tls.Config {
	return &tls.Config{GetCertificate: r.GetCertificate, MinVersion: tls.VersionTLS12}
}

// Run watches the certificate directories until ctx is done.
func (r *Reloader) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	defer w.Close()

	// Directories, not files: rotations usually rename over the target.
	dirs := map[string]struct{}{filepath.Dir(r.certFile): {}, filepath.Dir(r.keyFile): {}}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("tlsroots: watch %s: %w", d, err)
		}
	}
	names := map[string]struct{}{filepath.Base(r.certFile): {}, filepath.Base(r.keyFile): {}}

	timer := time.NewTimer(r.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if _, ours := names[filepath.Base(ev.Name)]; !ours {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(r.debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("certificate watcher error", "error", err)
		case <-timer.C:
			if err := r.Reload(); err != nil {
				r.logger.Error("certificate reload failed, keeping the current one", "error", err, "cert_file", r.certFile)
				continue
			}
			r.logger.Info("certificate reloaded", "cert_file", r.certFile)
		}
	}
}
