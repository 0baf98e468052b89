package metrics

// MultiSink fans out records to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordMatch forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordMatch(rec MatchRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordMatch(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordAlert forwards alerts to sinks that support them.
func (m *MultiSink) RecordAlert(rec AlertRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(AlertRecorder); ok {
			if err := r.RecordAlert(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordBurnout forwards burnout observations.
func (m *MultiSink) RecordBurnout(rec BurnoutRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(BurnoutRecorder); ok {
			if err := r.RecordBurnout(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAvailability forwards status transitions.
func (m *MultiSink) RecordAvailability(rec AvailabilityRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(AvailabilityRecorder); ok {
			if err := r.RecordAvailability(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPoolSize forwards the available pool size.
func (m *MultiSink) RecordPoolSize(n int) error {
	for _, s := range m.Sinks {
		if r, ok := s.(PoolSizeRecorder); ok {
			if err := r.RecordPoolSize(n); err != nil {
				return err
			}
		}
	}
	return nil
}
