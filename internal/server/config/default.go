package config

import (
	"time"

	"github.com/yndnr/tokvault-go/internal/scheduler"
	"github.com/yndnr/tokvault-go/internal/storage"
	"github.com/yndnr/tokvault-go/internal/storage/postgres"
	"github.com/yndnr/tokvault-go/internal/telemetry/logger"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:7080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxBodyBytes    = 1 << 20
	DefaultIPRateLimit     = 1000

	DefaultStorageBackend = BackendBadger
	DefaultDataDir        = "/var/lib/tokvault-server/data"

	DefaultSignatureWindow = 30 * time.Second
	DefaultAuthCacheTTL    = 5 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsPath = "/metrics"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ReadTimeout:     DefaultReadTimeout,
				WriteTimeout:    DefaultWriteTimeout,
				ShutdownTimeout: DefaultShutdownTimeout,
				MaxBodyBytes:    DefaultMaxBodyBytes,
				IPRateLimit:     DefaultIPRateLimit,
			},
		},
		Storage: StorageSection{
			Backend:  DefaultStorageBackend,
			DataDir:  DefaultDataDir,
			Badger:   storage.DefaultBadgerConfig(),
			Postgres: postgres.DefaultConfig(),
		},
		Custody: CustodySection{
			Persist: true,
		},
		Crank: CrankSection{
			Enabled:   true,
			Spec:      scheduler.DefaultSpec,
			BatchSize: scheduler.DefaultBatchSize,
		},
		Security: SecuritySection{
			RequireSignatures: true,
			SignatureWindow:   DefaultSignatureWindow,
			AuthCacheTTL:      DefaultAuthCacheTTL,
		},
		Log: LogSection{
			Level:   DefaultLogLevel,
			Format:  DefaultLogFormat,
			Backend: logger.BackendSlog,
		},
		Metrics: MetricsSection{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}
