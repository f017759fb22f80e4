// Package infra holds the adapters behind the core interfaces: the zerolog
// logger, metrics sinks, the MQTT schedule publisher and the run log.
package infra
