package metric

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BuildInfo is the static build information exported as labels.
type BuildInfo struct {
	Version   string
	Commit    string
	GoVersion string
}

// StatusCollector checks counter store health at scrape time and exports
// build information.
type StatusCollector struct {
	store   Pinger
	backend string
	timeout time.Duration

	storeUp   *prometheus.Desc
	buildInfo *prometheus.Desc
	build     BuildInfo
}

// NewStatusCollector creates a collector probing store with a bounded ping.
// A nil store exports no health metric.
func NewStatusCollector(store Pinger, backend string, build BuildInfo) *StatusCollector {
	return &StatusCollector{
		store:   store,
		backend: backend,
		timeout: 500 * time.Millisecond,
		storeUp: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "counter_store", "up"),
			"Whether the rate limit counter store answered a ping (1) or not (0).",
			[]string{"backend"}, nil,
		),
		buildInfo: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "build_info"),
			"Build information; the value is always 1.",
			[]string{"version", "commit", "go_version"}, nil,
		),
		build: build,
	}
}

// Describe implements prometheus.Collector.
func (c *StatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.storeUp
	ch <- c.buildInfo
}

// Collect implements prometheus.Collector.
func (c *StatusCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.buildInfo, prometheus.GaugeValue, 1,
		c.build.Version, c.build.Commit, c.build.GoVersion)

	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	up := 1.0
	if err := c.store.Ping(ctx); err != nil {
		up = 0
	}
	ch <- prometheus.MustNewConstMetric(c.storeUp, prometheus.GaugeValue, up, c.backend)
}
