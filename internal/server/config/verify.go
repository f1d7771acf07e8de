package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	checks := []func(*ServerConfig) error{
		verifyServer,
		verifyStorage,
		verifyFees,
		verifyCrank,
		verifySecurity,
		verifyLog,
		verifyMetrics,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func verifyServer(cfg *ServerConfig) error {
	http := cfg.Server.HTTP
	if http.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(http.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if (http.TLSCertFile == "") != (http.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{http.TLSCertFile, http.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http: %w", err)
		}
	}
	if http.MaxBodyBytes < 0 {
		return errors.New("server.http.max_body_bytes must not be negative")
	}
	if http.IPRateLimit < 0 || http.IPRateLimit > domain.MaxRateLimit {
		return fmt.Errorf("server.http.ip_rate_limit must be between 0 and %d", domain.MaxRateLimit)
	}
	return nil
}

func verifyStorage(cfg *ServerConfig) error {
	st := cfg.Storage
	switch st.Backend {
	case BackendMemory:
		if cfg.Custody.Persist {
			return errors.New("custody.persist requires a durable storage backend")
		}
	case BackendBadger:
		if st.DataDir == "" {
			return errors.New("storage.data_dir is required")
		}
		if err := os.MkdirAll(st.DataDir, 0750); err != nil {
			return errors.New("cannot create data directory: " + err.Error())
		}
		if st.Badger.GCThreshold < 0 || st.Badger.GCThreshold > 1 {
			return errors.New("storage.badger.gc_threshold must be within [0, 1]")
		}
	case BackendPostgres:
		if st.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, badger, postgres", st.Backend)
	}
	return nil
}

func verifyFees(cfg *ServerConfig) error {
	if cfg.Fees.DefaultCollector == "" {
		return nil
	}
	if _, err := domain.ParseIdentity("fees.default_collector", cfg.Fees.DefaultCollector); err != nil {
		return err
	}
	return nil
}

func verifyCrank(cfg *ServerConfig) error {
	if !cfg.Crank.Enabled {
		return nil
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(cfg.Crank.Spec); err != nil {
		return fmt.Errorf("crank.spec: %w", err)
	}
	if cfg.Crank.BatchSize < 1 {
		return errors.New("crank.batch_size must be at least 1")
	}
	return nil
}

func verifySecurity(cfg *ServerConfig) error {
	sec := cfg.Security
	if !sec.DisableAuth && len(sec.APIKeys) == 0 {
		return errors.New("security.api_keys: at least one key is required unless disable_auth is set")
	}

	seen := make(map[string]struct{}, len(sec.APIKeys))
	for i, k := range sec.APIKeys {
		field := fmt.Sprintf("security.api_keys[%d]", i)
		if !strings.HasPrefix(k.ID, domain.APIKeyIDPrefix) {
			return fmt.Errorf("%s.id must start with %q", field, domain.APIKeyIDPrefix)
		}
		if _, dup := seen[k.ID]; dup {
			return fmt.Errorf("%s.id %q is duplicated", field, k.ID)
		}
		seen[k.ID] = struct{}{}
		if !domain.IsValidRole(k.Role) {
			return fmt.Errorf("%s.role %q is invalid", field, k.Role)
		}
		if !strings.HasPrefix(k.SecretHash, "$argon2id$") {
			return fmt.Errorf("%s.secret_hash must be an argon2id hash", field)
		}
		if k.RateLimit != 0 && (k.RateLimit < domain.MinRateLimit || k.RateLimit > domain.MaxRateLimit) {
			return fmt.Errorf("%s.rate_limit must be within [%d, %d]", field, domain.MinRateLimit, domain.MaxRateLimit)
		}
		if err := verifyAllowlist(field+".allowlist", k.Allowlist); err != nil {
			return err
		}
	}
	if err := verifyAllowlist("security.global_allowlist", sec.GlobalAllowlist); err != nil {
		return err
	}
	if sec.RequireSignatures && sec.SignatureWindow <= 0 {
		return errors.New("security.signature_window must be positive")
	}
	return nil
}

func verifyAllowlist(field string, entries []string) error {
	for _, e := range entries {
		if strings.Contains(e, "/") {
			if _, _, err := net.ParseCIDR(e); err != nil {
				return fmt.Errorf("%s: %w", field, err)
			}
			continue
		}
		if net.ParseIP(e) == nil {
			return fmt.Errorf("%s: %q is not an IP or CIDR", field, e)
		}
	}
	return nil
}

func verifyLog(cfg *ServerConfig) error {
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level %q is invalid", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q is invalid", cfg.Log.Format)
	}
	switch cfg.Log.Backend {
	case "", logger.BackendSlog, logger.BackendZap:
	default:
		return fmt.Errorf("log.backend %q is invalid", cfg.Log.Backend)
	}
	return nil
}

func verifyMetrics(cfg *ServerConfig) error {
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	return nil
}
