package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolStats is a snapshot of a database connection pool.
type PoolStats struct {
	AcquiredConns int32
	IdleConns     int32
	TotalConns    int32
	MaxConns      int32
	AcquireCount  int64
}

// PoolCollector exports connection pool stats read on every scrape.
type PoolCollector struct {
	stats func() PoolStats

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
	max      *prometheus.Desc
	acquires *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector creates a collector for the pool behind stats.
func NewPoolCollector(stats func() PoolStats) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db_pool", name), help, nil, nil)
	}
	return &PoolCollector{
		stats:    stats,
		acquired: desc("acquired_conns", "Connections currently in use"),
		idle:     desc("idle_conns", "Idle connections"),
		total:    desc("total_conns", "Open connections"),
		max:      desc("max_conns", "Configured connection limit"),
		acquires: desc("acquires_total", "Total successful connection acquisitions"),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.acquires
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount))
}
