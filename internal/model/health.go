package model

import "time"

// HealthSnapshot is a point-in-time view of pipeline status. It is never persisted.
type HealthSnapshot struct {
	StartedAt             time.Time
	TakenAt               time.Time
	EventsProcessed       uint64
	LastEventTime         *time.Time
	AverageProcessingTime time.Duration
	QueueDepth            int
	Connection            ConnectionState
}

// Uptime returns the time elapsed between start and the snapshot.
func (s HealthSnapshot) Uptime() time.Duration {
	if s.TakenAt.Before(s.StartedAt) {
		return 0
	}
	return s.TakenAt.Sub(s.StartedAt)
}
