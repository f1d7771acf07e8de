package metric

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

// ManagerSource is the part of the token manager repository the collector
// reads.
type ManagerSource interface {
	Find(ctx context.Context, filter domain.TokenManagerFilter) ([]*domain.TokenManager, error)
}

// Collector reports token manager counts per state at scrape time.
type Collector struct {
	source  ManagerSource
	timeout time.Duration

	managers *prometheus.Desc
	listed   *prometheus.Desc
	up       *prometheus.Desc
}

// NewCollector creates a collector over source.
func NewCollector(source ManagerSource) *Collector {
	return &Collector{
		source:  source,
		timeout: 5 * time.Second,
		managers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "token_managers"),
			"Token managers by state.",
			[]string{"state"}, nil),
		listed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "token_managers_listed"),
			"Claimed token managers currently listed for sale.",
			nil, nil),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "store_up"),
			"Whether the last scrape could read the record store.",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.managers
	ch <- c.listed
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	all, err := c.source.Find(ctx, domain.TokenManagerFilter{})
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	counts := map[domain.State]int{
		domain.StateIssued:      0,
		domain.StateClaimed:     0,
		domain.StateInvalidated: 0,
	}
	listed := 0
	for _, tm := range all {
		counts[tm.State]++
		if tm.Listed {
			listed++
		}
	}
	for st, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.managers, prometheus.GaugeValue, float64(n), st.String())
	}
	ch <- prometheus.MustNewConstMetric(c.listed, prometheus.GaugeValue, float64(listed))
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
}
