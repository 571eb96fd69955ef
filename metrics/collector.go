// Package metrics exports pool statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guileen/respool/pool"
)

const namespace = "respool"

// Source is anything that reports pool statistics
type Source interface {
	Name() string
	Stats() pool.Stats
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(pool.Stats) uint64
}

// Collector is a prometheus.Collector reading one Source on every scrape
type Collector struct {
	source Source

	idle     *prometheus.Desc
	live     *prometheus.Desc
	capacity *prometheus.Desc
	counters []counterDesc
}

// NewCollector creates a collector labelled with the source's pool name
func NewCollector(source Source) *Collector {
	labels := prometheus.Labels{"pool": source.Name()}
	newDesc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, nil, labels)
	}

	counter := func(name, help string, value func(pool.Stats) uint64) counterDesc {
		return counterDesc{desc: newDesc(name, help), value: value}
	}

	return &Collector{
		source:   source,
		idle:     newDesc("idle_resources", "Resources currently idle in the pool."),
		live:     newDesc("live_resources", "Constructed resources the pool tracks, idle or on loan."),
		capacity: newDesc("capacity", "Configured pool capacity."),
		counters: []counterDesc{
			counter("hits_total", "Acquires served from the idle set.", func(s pool.Stats) uint64 { return s.Hits }),
			counter("misses_total", "Acquires served by the factory.", func(s pool.Stats) uint64 { return s.Misses }),
			counter("construction_errors_total", "Factory failures.", func(s pool.Stats) uint64 { return s.ConstructionErrors }),
			counter("exhausted_total", "Acquires refused because the pool was exhausted.", func(s pool.Stats) uint64 { return s.Exhausted }),
			counter("releases_total", "Resources handed back to the pool.", func(s pool.Stats) uint64 { return s.Releases }),
			counter("discards_total", "Released resources dropped because the pool was full.", func(s pool.Stats) uint64 { return s.Discards }),
			counter("rejected_total", "Releases refused because the pool was full.", func(s pool.Stats) uint64 { return s.Rejected }),
			counter("evictions_total", "Idle resources evicted to make room.", func(s pool.Stats) uint64 { return s.Evictions }),
			counter("handoffs_total", "Releases handed straight to a waiting acquirer.", func(s pool.Stats) uint64 { return s.Handoffs }),
			counter("waits_total", "Acquires that had to wait.", func(s pool.Stats) uint64 { return s.Waits }),
			counter("timeouts_total", "Waiting acquires that gave up.", func(s pool.Stats) uint64 { return s.Timeouts }),
		},
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.idle
	ch <- c.live
	ch <- c.capacity
	for _, cd := range c.counters {
		ch <- cd.desc
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	if s.Live >= 0 {
		ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(s.Live))
	}
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity))
	for _, cd := range c.counters {
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(cd.value(s)))
	}
}

// NewRegistry creates a private registry with the Go runtime collector and a
// Collector for every source
func NewRegistry(sources ...Source) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(prometheus.NewGoCollector()); err != nil {
		return nil, err
	}
	for _, source := range sources {
		if err := reg.Register(NewCollector(source)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Handler serves the registry in the Prometheus exposition format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
