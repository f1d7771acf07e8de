package main

import (
	"context"
	"fmt"

	"github.com/yndnr/tokvault-go/internal/core/service"
	"github.com/yndnr/tokvault-go/internal/server/config"
	"github.com/yndnr/tokvault-go/internal/storage"
	"github.com/yndnr/tokvault-go/internal/storage/memory"
	"github.com/yndnr/tokvault-go/internal/storage/postgres"
	"github.com/yndnr/tokvault-go/internal/telemetry/logger"
	"github.com/yndnr/tokvault-go/internal/telemetry/metric"
)

// backend is the opened record store.
type backend struct {
	repos service.Repositories
	// kv holds ledger accounts; nil for the memory backend.
	kv    storage.KVEngine
	ready func(context.Context) error
	close func() error
}

func openBackend(ctx context.Context, cfg *config.ServerConfig, lg logger.Logger, reg *metric.Registry) (*backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		s := memory.New()
		return &backend{
			repos: service.Repositories{
				TokenManagers:   s.TokenManagers,
				PaymentManagers: s.PaymentManagers,
				MintMetadata:    s.MintMetadata,
				Marketplaces:    s.Marketplaces,
				Listings:        s.Listings,
			},
			ready: func(context.Context) error { return nil },
			close: s.Close,
		}, nil

	case config.BackendBadger:
		engine, err := storage.NewBadgerEngine(storage.KVConfig{
			Dir:    cfg.Storage.DataDir,
			Badger: cfg.Storage.Badger,
		}, logger.Slog(lg))
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		if err := engine.RegisterMetrics(reg.Registerer()); err != nil {
			engine.Close()
			return nil, fmt.Errorf("register badger metrics: %w", err)
		}
		s := storage.NewKVStore(engine)
		return &backend{
			repos: service.Repositories{
				TokenManagers:   s.TokenManagers,
				PaymentManagers: s.PaymentManagers,
				MintMetadata:    s.MintMetadata,
				Marketplaces:    s.Marketplaces,
				Listings:        s.Listings,
			},
			kv: engine,
			ready: func(ctx context.Context) error {
				_, err := engine.Stats(ctx)
				return err
			},
			close: s.Close,
		}, nil

	case config.BackendPostgres:
		s, err := postgres.Open(ctx, cfg.Storage.Postgres)
		if err != nil {
			return nil, err
		}
		return &backend{
			repos: service.Repositories{
				TokenManagers:   s.TokenManagers,
				PaymentManagers: s.PaymentManagers,
				MintMetadata:    s.MintMetadata,
				Marketplaces:    s.Marketplaces,
				Listings:        s.Listings,
			},
			kv:    s.Ledger,
			ready: s.Ping,
			close: s.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
