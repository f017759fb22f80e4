package metrics

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordOptimization forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordOptimization(rec OptimizationRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordOptimization(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordPhase forwards phase transitions to sinks supporting them.
func (m *MultiSink) RecordPhase(rec PhaseRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(PhaseRecorder); ok {
			if err := r.RecordPhase(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordConstraintSkip forwards skipped constraints to sinks supporting them.
func (m *MultiSink) RecordConstraintSkip(rec ConstraintSkipRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(ConstraintSkipRecorder); ok {
			if err := r.RecordConstraintSkip(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
