package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server wraps http.Server so Serve and ListenAndServe return nil after
// a graceful Shutdown.
type Server struct {
	srv *http.Server
}

// Options tunes the underlying http.Server. Zero timeouts mean none,
// except IdleTimeout which falls back to ReadTimeout.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// TLSConfig switches the server to HTTPS. It must supply its own
	// certificate, typically through GetCertificate.
	TLSConfig *tls.Config
	// ErrorLog receives connection-level errors from net/http.
	ErrorLog *slog.Logger
}

func New(addr string, handler http.Handler, opts Options) *Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
		MaxHeaderBytes:    64 << 10,
		TLSConfig:         opts.TLSConfig,
	}
	if opts.ErrorLog != nil {
		srv.ErrorLog = slog.NewLogLogger(opts.ErrorLog.Handler(), slog.LevelWarn)
	}
	return &Server{srv: srv}
}

// Serve accepts on ln until Shutdown, terminating TLS itself when
// Options.TLSConfig is set.
func (s *Server) Serve(ln net.Listener) error {
	if s.srv.TLSConfig != nil {
		ln = tls.NewListener(ln, s.srv.TLSConfig)
	}
	return ignoreClosed(s.srv.Serve(ln))
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown stops accepting and waits for in-flight requests until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
