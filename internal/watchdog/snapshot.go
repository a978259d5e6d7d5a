package watchdog

// Snapshot remembers the last payload published per topic so a scan only
// re-emits what actually changed. It records values only after a successful
// publish: a failed publish leaves the entry stale and the next scan tries
// again. Retained messages on the broker make this eventually consistent.
//
// Each loop owns its own Snapshot; there is no locking.
type Snapshot struct {
	last map[string]string
}

// NewSnapshot returns an empty snapshot: the first scan publishes everything.
func NewSnapshot() *Snapshot {
	return &Snapshot{last: make(map[string]string)}
}

// Changed reports whether payload differs from the last recorded value for
// topic (or the topic was never published). It does not record.
func (s *Snapshot) Changed(topic, payload string) bool {
	v, ok := s.last[topic]
	return !ok || v != payload
}

// Record stores the payload as the last published value for topic.
func (s *Snapshot) Record(topic, payload string) {
	s.last[topic] = payload
}

// Len returns the number of recorded topics.
func (s *Snapshot) Len() int {
	return len(s.last)
}
