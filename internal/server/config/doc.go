// Package config provides server configuration for TokVault.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation (addresses, backends, keys, cron spec)
//   - sanitize.go: masking of secrets before the config is logged
//
// Configuration is loaded via internal/infra/confloader from a YAML file
// and TOKVAULT_ environment variables.
package config
