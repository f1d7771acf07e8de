// Package main is the entry point of tokvault-server.
//
// The server holds escrowed assets in token managers, enforces their
// claim, time, use and custom invalidation policies, settles fees through
// payment managers and runs the marketplace. It exposes:
//
//   - the HTTP API under /v1 and /admin/v1
//   - Prometheus metrics (default /metrics)
//   - a cron crank that fires due time and use policies
//
// Usage:
//
//	tokvault-server --config /etc/tokvault/server.yaml
//	TOKVAULT_LOG__LEVEL=debug tokvault-server --config server.yaml
//
// Configuration changes to the log level and API keys are picked up
// without a restart.
package main
