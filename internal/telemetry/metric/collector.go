package metric

import "github.com/prometheus/client_golang/prometheus"

// Collector exports the registered account count, read at scrape time.
type Collector struct {
	accountCount func() int
	accounts     *prometheus.Desc
}

// NewCollector creates a collector that calls accountCount on every scrape.
func NewCollector(accountCount func() int) *Collector {
	return &Collector{
		accountCount: accountCount,
		accounts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "accounts_registered"),
			"Number of registered accounts.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.accounts
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.accountCount == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.accounts, prometheus.GaugeValue, float64(c.accountCount()))
}
