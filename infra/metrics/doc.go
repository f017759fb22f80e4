// Package metrics provides the Prometheus and InfluxDB sinks for optimization
// outcomes, the event bus collector feeding them and the /metrics server.
package metrics
