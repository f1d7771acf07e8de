package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/service"
	"github.com/yndnr/tokvault-go/internal/custody/ledger"
	"github.com/yndnr/tokvault-go/internal/infra/buildinfo"
	"github.com/yndnr/tokvault-go/internal/infra/confloader"
	"github.com/yndnr/tokvault-go/internal/infra/shutdown"
	"github.com/yndnr/tokvault-go/internal/infra/tlsroots"
	"github.com/yndnr/tokvault-go/internal/scheduler"
	"github.com/yndnr/tokvault-go/internal/server/config"
	"github.com/yndnr/tokvault-go/internal/server/httpserver"
	"github.com/yndnr/tokvault-go/internal/telemetry/logger"
	"github.com/yndnr/tokvault-go/internal/telemetry/metric"
)

// loadConfig merges the file, TOKVAULT_ variables and flag overrides over
// the defaults and validates the result.
func loadConfig(path string, overrides map[string]any) (*config.ServerConfig, *confloader.Loader, error) {
	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	loader := confloader.NewLoader(opts...)

	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader, nil
}

func run(ctx context.Context, cfg *config.ServerConfig, loader *confloader.Loader) error {
	lg, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Backend: cfg.Log.Backend,
		Output:  os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(lg)

	lg.Info("starting tokvault-server",
		"version", buildinfo.Get().Version,
		"commit", buildinfo.Get().Commit,
		"config", loader.FilePath(),
		"storage", cfg.Storage.Backend)

	down := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout, lg)
	reg := metric.NewRegistry()

	backend, err := openBackend(ctx, cfg, lg, reg)
	if err != nil {
		return err
	}
	down.OnShutdown("storage", func(context.Context) error { return backend.close() })

	ledgerOpts := []ledger.Option{ledger.WithLogger(lg)}
	if cfg.Custody.Persist && backend.kv != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithStore(backend.kv))
	}
	custody, err := ledger.New(ctx, ledgerOpts...)
	if err != nil {
		backend.close()
		return fmt.Errorf("load custody ledger: %w", err)
	}
	down.OnShutdown("ledger", func(context.Context) error { return custody.Close() })

	collector, err := feeCollector(cfg, lg)
	if err != nil {
		return err
	}
	svcs := service.New(service.Deps{
		Repos:               backend.repos,
		Custody:             custody,
		Clock:               service.SystemClock{},
		Logger:              lg,
		Observer:            reg,
		DefaultFeeCollector: collector,
	})
	reg.Registerer().MustRegister(metric.NewCollector(backend.repos.TokenManagers))

	keys := service.NewKeyRing(cfg.Security.Keys()...)
	auth := service.NewAuthService(keys, &service.AuthServiceConfig{
		CacheTTL:        cfg.Security.AuthCacheTTL,
		GlobalAllowlist: cfg.Security.GlobalAllowlist,
	})
	if cfg.Security.DisableAuth {
		lg.Warn("API key authentication is disabled")
	}

	var sigs *service.SignatureService
	if cfg.Security.RequireSignatures {
		sigs = service.NewSignatureService(&service.SignatureServiceConfig{
			TimestampWindow: cfg.Security.SignatureWindow,
			NonceTTL:        2 * cfg.Security.SignatureWindow,
		})
	}

	if cfg.Crank.Enabled {
		crank := scheduler.New(backend.repos.TokenManagers, svcs.Custody, scheduler.Config{
			Spec:      cfg.Crank.Spec,
			BatchSize: cfg.Crank.BatchSize,
		}, scheduler.WithLogger(lg), scheduler.WithMetrics(reg))
		if err := crank.Start(ctx); err != nil {
			return err
		}
		down.OnShutdown("crank", func(context.Context) error {
			crank.Stop()
			return nil
		})
	}

	routerCfg := &httpserver.RouterConfig{
		Services:     svcs,
		Ledger:       custody,
		Auth:         auth,
		Signatures:   sigs,
		DisableAuth:  cfg.Security.DisableAuth,
		Logger:       lg,
		Ready:        backend.ready,
		MaxBodyBytes: cfg.Server.HTTP.MaxBodyBytes,
		IPRateLimit:  cfg.Server.HTTP.IPRateLimit,
	}
	if cfg.Metrics.Enabled {
		routerCfg.Metrics = reg
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	httpCfg := cfg.Server.HTTP
	opts := httpserver.Options{
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
		ErrorLog:     logger.Slog(lg),
	}
	if httpCfg.TLSCertFile != "" {
		certs, err := tlsroots.NewReloader(httpCfg.TLSCertFile, httpCfg.TLSKeyFile, tlsroots.WithLogger(lg))
		if err != nil {
			return err
		}
		opts.TLSConfig = certs.ServerConfig()
		watchCtx, stopWatch := context.WithCancel(ctx)
		go func() {
			if err := certs.Run(watchCtx); err != nil {
				lg.Warn("certificate hot reload unavailable", "error", err)
			}
		}()
		down.OnShutdown("cert-watcher", func(context.Context) error {
			stopWatch()
			return nil
		})
	}
	srv := httpserver.New(httpCfg.Addr, httpserver.NewRouter(routerCfg), opts)
	down.OnShutdown("http", srv.Shutdown)

	if path := loader.FilePath(); path != "" {
		stop, err := watchConfig(path, loader, lg, keys, auth)
		if err != nil {
			lg.Warn("config hot reload unavailable", "error", err)
		} else {
			down.OnShutdown("config-watcher", func(context.Context) error { return stop() })
		}
	}

	go func() {
		lg.Info("HTTP server listening", "addr", httpCfg.Addr, "tls", httpCfg.TLSCertFile != "")
		if err := srv.ListenAndServe(); err != nil {
			down.Trigger(fmt.Errorf("http server: %w", err))
		}
	}()

	if err := down.Wait(ctx); err != nil {
		lg.Error("shutdown finished with errors", "error", err)
		return err
	}
	lg.Info("server stopped")
	return nil
}

func feeCollector(cfg *config.ServerConfig, lg logger.Logger) (solana.PublicKey, error) {
	if cfg.Fees.DefaultCollector == "" {
		lg.Warn("fees.default_collector is not set; payment managers must name their own collector")
		return solana.PublicKey{}, nil
	}
	return solana.PublicKeyFromBase58(cfg.Fees.DefaultCollector)
}

// watchConfig reloads the log level and API keys when the file changes.
func watchConfig(path string, loader *confloader.Loader, lg logger.Logger, keys *service.KeyRing, auth *service.AuthService) (func() error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(lg))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		next := config.Default()
		if err := loader.Load(next); err != nil {
			lg.Error("config reload failed", "error", err)
			return
		}
		if err := config.Verify(next); err != nil {
			lg.Error("reloaded config is invalid, keeping the current one", "error", err)
			return
		}
		if err := logger.SetLevel(next.Log.Level); err != nil {
			lg.Warn("log level not changed", "error", err)
		}
		keys.Replace(next.Security.Keys())
		auth.InvalidateCache()
		lg.Info("config reloaded", "log_level", next.Log.Level, "api_keys", keys.Len())
	})
	w.StartAsync()
	return w.Stop, nil
}
