package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTransition forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordTransition(rec TransitionRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordTransition(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordDecision forwards decisions to sinks supporting them.
func (m *MultiSink) RecordDecision(rec DecisionRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(DecisionRecorder); ok {
			if err := r.RecordDecision(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRequest forwards requests.
func (m *MultiSink) RecordRequest(rec RequestRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(RequestRecorder); ok {
			if err := r.RecordRequest(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOffer forwards offers.
func (m *MultiSink) RecordOffer(rec OfferRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(OfferRecorder); ok {
			if err := r.RecordOffer(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordQueueDrop forwards dropped pushes.
func (m *MultiSink) RecordQueueDrop(rec QueueDropRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(QueueDropRecorder); ok {
			if err := r.RecordQueueDrop(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
