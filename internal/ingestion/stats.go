package ingestion

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats tracks the coordinator's running counters: events received, pools
// detected, errors, and the time of the last event.
type Stats struct {
	EventsReceived atomic.Int64
	PoolsDetected  atomic.Int64
	Dropped        atomic.Int64
	Errors         atomic.Int64

	mu          sync.Mutex
	lastEventAt time.Time
}

func (s *Stats) recordEventNow() {
	s.mu.Lock()
	s.lastEventAt = time.Now()
	s.mu.Unlock()
}

// StatsSnapshot is a point-in-time copy of Stats safe to log or export.
type StatsSnapshot struct {
	EventsReceived int64
	PoolsDetected  int64
	Dropped        int64
	Errors         int64
	LastEventAt    time.Time
}

// Snapshot returns a consistent copy of the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	last := s.lastEventAt
	s.mu.Unlock()
	return StatsSnapshot{
		EventsReceived: s.EventsReceived.Load(),
		PoolsDetected:  s.PoolsDetected.Load(),
		Dropped:        s.Dropped.Load(),
		Errors:         s.Errors.Load(),
		LastEventAt:    last,
	}
}
