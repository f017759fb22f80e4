package metrics

import "github.com/kilianp07/railsched/core/factory"

// Config defines settings for metrics sinks. PrometheusPort enables the
// /metrics endpoint when set.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks"`
	PrometheusPort string                 `json:"prometheus_port"`
}
