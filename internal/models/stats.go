package models

import "sync"

// RunnerStats holds monotonically increasing counters for the lifetime of
// one scanner run. Safe for concurrent use; reset only on process restart.
type RunnerStats struct {
	mu sync.Mutex

	marketsScanned     int64
	signalsDetected    int64
	alertsSent         int64
	alertsDeduplicated int64
	errors             int64
}

func (s *RunnerStats) AddScanned()      { s.add(&s.marketsScanned) }
func (s *RunnerStats) AddDetected()     { s.add(&s.signalsDetected) }
func (s *RunnerStats) AddSent()         { s.add(&s.alertsSent) }
func (s *RunnerStats) AddDeduplicated() { s.add(&s.alertsDeduplicated) }
func (s *RunnerStats) AddError()        { s.add(&s.errors) }

func (s *RunnerStats) add(field *int64) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	MarketsScanned     int64
	SignalsDetected    int64
	AlertsSent         int64
	AlertsDeduplicated int64
	Errors             int64
}

// Snapshot returns a consistent copy of all counters.
func (s *RunnerStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		MarketsScanned:     s.marketsScanned,
		SignalsDetected:    s.signalsDetected,
		AlertsSent:         s.alertsSent,
		AlertsDeduplicated: s.alertsDeduplicated,
		Errors:             s.errors,
	}
}
