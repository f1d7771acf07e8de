// Package config stores tokvault-cli connection profiles.
//
// Profiles live in ~/.tokvault/cli.yaml (mode 0600) and are read with
// koanf. Flags and TOKVAULT_* environment variables override the values
// of the selected profile.
package config
