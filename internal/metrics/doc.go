// Package metrics records batch job counters on a private Prometheus
// registry and pushes them to a Pushgateway after each run.
package metrics
