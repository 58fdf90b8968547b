// Package health exposes pipeline counters and broker status to external monitors.
package health

import (
	"sync/atomic"
	"time"
)

// Stats holds the counters written by the publisher on every acknowledged message.
// All methods are safe for concurrent use and never block.
type Stats struct {
	processed  atomic.Uint64
	lastEvent  atomic.Int64
	latencySum atomic.Int64
}

func NewStats() *Stats {
	return &Stats{}
}

// RecordPublished counts one acknowledged event. latency is the time between the
// batch hand-off and the broker ack.
func (s *Stats) RecordPublished(at time.Time, latency time.Duration) {
	if latency < 0 {
		latency = 0
	}
	s.latencySum.Add(int64(latency))
	s.lastEvent.Store(at.UnixNano())
	s.processed.Add(1)
}

func (s *Stats) EventsProcessed() uint64 {
	return s.processed.Load()
}

// LastEventTime returns the ack time of the most recent event.
func (s *Stats) LastEventTime() (time.Time, bool) {
	ns := s.lastEvent.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns).UTC(), true
}

// AverageProcessingTime is the mean hand-off to ack latency over acknowledged events.
func (s *Stats) AverageProcessingTime() time.Duration {
	n := s.processed.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(s.latencySum.Load() / int64(n))
}
