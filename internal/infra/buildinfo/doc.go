// Package buildinfo reports the version of the running tokvault binaries.
//
// Release builds inject values with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/tokvault-go/internal/infra/buildinfo.Version=v0.3.0"
//
// Values left unset fall back to what the Go toolchain embedded in the
// binary (module version, VCS revision and time).
package buildinfo
