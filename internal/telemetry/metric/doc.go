// Package metric provides Prometheus metrics for TokVault.
//
//   - prometheus.go: registry, transition counters and the /metrics handler
//   - collector.go: gauges computed from the record store at scrape time
//
// Registry implements the service observer, so every committed receipt is
// counted by operation, resulting state, invalidation outcome and fees.
package metric
