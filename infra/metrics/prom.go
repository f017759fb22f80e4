package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/railsched/core/metrics"
)

// PromSink records optimization outcomes in Prometheus metrics.
type PromSink struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	delay     prometheus.Histogram
	resolved  prometheus.Counter
	skipped   *prometheus.CounterVec
	phases    *prometheus.CounterVec
	progress  prometheus.Gauge
	lastTrain prometheus.Gauge
}

// NewPromSink registers optimization metrics on the default Prometheus
// registerer. The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// register returns the collector already registered under the same
// descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railsched_optimizations_total",
		Help: "Total number of optimization requests by outcome",
	}, []string{"section_id", "status"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "railsched_optimization_duration_seconds",
		Help:    "Wall time of optimization requests",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.delay, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "railsched_schedule_total_delay_minutes",
		Help:    "Total positive delay of produced schedules",
		Buckets: []float64{0, 5, 10, 20, 40, 80, 160, 320},
	})); err != nil {
		return nil, err
	}
	if s.resolved, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "railsched_conflicts_resolved_total",
		Help: "Conflicts of submitted plans removed by optimization",
	})); err != nil {
		return nil, err
	}
	if s.skipped, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railsched_constraints_skipped_total",
		Help: "Constraints that could not be applied, by kind",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.phases, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railsched_phase_transitions_total",
		Help: "Pipeline phases entered by optimization requests",
	}, []string{"phase"})); err != nil {
		return nil, err
	}
	if s.progress, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railsched_last_progress_percent",
		Help: "Progress reported by the most recent phase transition",
	})); err != nil {
		return nil, err
	}
	if s.lastTrain, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railsched_last_request_trains",
		Help: "Number of trains in the most recent optimization request",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordOptimization updates the request counters and histograms.
func (s *PromSink) RecordOptimization(rec coremetrics.OptimizationRecord) error {
	status := string(rec.Status)
	s.requests.WithLabelValues(rec.SectionID, status).Inc()
	s.duration.WithLabelValues(status).Observe(rec.Duration.Seconds())
	s.lastTrain.Set(float64(rec.Trains))
	if rec.Status.Solved() {
		s.delay.Observe(rec.Metrics.TotalDelayMinutes)
		s.resolved.Add(float64(rec.Metrics.ConflictsResolved))
	}
	return nil
}

// RecordPhase counts phase transitions.
func (s *PromSink) RecordPhase(rec coremetrics.PhaseRecord) error {
	s.phases.WithLabelValues(string(rec.Phase)).Inc()
	s.progress.Set(rec.Progress)
	return nil
}

// RecordConstraintSkip counts skipped constraints.
func (s *PromSink) RecordConstraintSkip(rec coremetrics.ConstraintSkipRecord) error {
	s.skipped.WithLabelValues(string(rec.Kind)).Inc()
	return nil
}
