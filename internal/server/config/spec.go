package config

import (
	"time"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/storage"
	"github.com/yndnr/tokvault-go/internal/storage/postgres"
)

// ServerConfig is the root configuration for tokvault-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Storage  StorageSection  `koanf:"storage"`
	Custody  CustodySection  `koanf:"custody"`
	Fees     FeesSection     `koanf:"fees"`
	Crank    CrankSection    `koanf:"crank"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
	Metrics  MetricsSection  `koanf:"metrics"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	TLSCertFile     string        `koanf:"tls_cert_file"`
	TLSKeyFile      string        `koanf:"tls_key_file"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
	// IPRateLimit is requests per second per client address; 0 disables it.
	IPRateLimit int `koanf:"ip_rate_limit"`
}

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// StorageSection selects and tunes the record store.
type StorageSection struct {
	// Backend is memory, badger or postgres.
	Backend  string               `koanf:"backend"`
	DataDir  string               `koanf:"data_dir"`
	Badger   storage.BadgerConfig `koanf:"badger"`
	Postgres postgres.Config      `koanf:"postgres"`
}

// CustodySection configures the custody ledger.
type CustodySection struct {
	// Persist stores ledger accounts in the storage backend. Requires a
	// durable backend.
	Persist bool `koanf:"persist"`
}

// FeesSection configures fee defaults.
type FeesSection struct {
	// DefaultCollector receives fees of payment managers created without
	// an explicit collector. Base58 identity.
	DefaultCollector string `koanf:"default_collector"`
}

// CrankSection configures the invalidation crank.
type CrankSection struct {
	Enabled bool `koanf:"enabled"`
	// Spec is a cron expression with a seconds field.
	Spec      string `koanf:"spec"`
	BatchSize int    `koanf:"batch_size"`
}

// SecuritySection configures request authentication.
type SecuritySection struct {
	// APIKeys are the accepted keys. Secrets are stored as Argon2id hashes.
	APIKeys []APIKeyConfig `koanf:"api_keys"`

	// DisableAuth serves the API without API keys. Development only.
	DisableAuth bool `koanf:"disable_auth"`

	// RequireSignatures makes every mutating request carry an ed25519
	// signature of the caller identity.
	RequireSignatures bool `koanf:"require_signatures"`

	// SignatureWindow bounds the request timestamp skew.
	SignatureWindow time.Duration `koanf:"signature_window"`

	// GlobalAllowlist restricts client IPs for every key (IPs or CIDRs).
	GlobalAllowlist []string `koanf:"global_allowlist"`

	// AuthCacheTTL is how long a validated key stays cached.
	AuthCacheTTL time.Duration `koanf:"auth_cache_ttl"`
}

// APIKeyConfig is one configured API key.
type APIKeyConfig struct {
	ID         string   `koanf:"id"`
	Name       string   `koanf:"name"`
	SecretHash string   `koanf:"secret_hash"`
	Role       string   `koanf:"role"`
	Allowlist  []string `koanf:"allowlist"`
	RateLimit  int      `koanf:"rate_limit"`
	Disabled   bool     `koanf:"disabled"`
}

// APIKey converts the entry to a domain key.
func (c APIKeyConfig) APIKey() *domain.APIKey {
	status := domain.KeyStatusActive
	if c.Disabled {
		status = domain.KeyStatusDisabled
	}
	return &domain.APIKey{
		KeyID:      c.ID,
		Name:       c.Name,
		SecretHash: c.SecretHash,
		Role:       domain.Role(c.Role),
		Allowlist:  append([]string(nil), c.Allowlist...),
		RateLimit:  c.RateLimit,
		Status:     status,
	}
}

// Keys converts every configured key.
func (s SecuritySection) Keys() []*domain.APIKey {
	keys := make([]*domain.APIKey, 0, len(s.APIKeys))
	for _, c := range s.APIKeys {
		keys = append(keys, c.APIKey())
	}
	return keys
}

// LogSection configures logging.
type LogSection struct {
	Level   string `koanf:"level"`
	Format  string `koanf:"format"`
	Backend string `koanf:"backend"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}
