// Package metrics defines the sinks recording optimization outcomes. Sinks
// like PromSink and InfluxSink live in infra/metrics and register themselves
// by name; NewMetricsSink builds one from configuration and returns a
// MultiSink automatically when several sinks are configured.
package metrics
