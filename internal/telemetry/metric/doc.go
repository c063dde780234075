// Package metric provides Prometheus metrics for stockgate.
//
//   - prometheus.go: the Registry of request, token, login and rate limit
//     metrics, and the /metrics handler
//   - collector.go: a scrape-time collector reporting counter store health
//     and build information
//
// Each Registry owns a private prometheus.Registry, so tests and multiple
// servers in one process never collide on metric names.
package metric
