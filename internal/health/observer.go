package health

import (
	"time"

	"solanaIndexer/internal/model"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// minUptimeMinutes keeps the rate finite right after start.
const minUptimeMinutes = 1.0 / 60.0

// ConnectionReporter returns the broker link state without blocking.
type ConnectionReporter interface {
	HealthCheck() model.ConnectionState
}

// DepthReporter reports buffered queue items.
type DepthReporter interface {
	Len() int
}

// Observer is a read-only view over Stats and the publisher's connection state.
type Observer struct {
	stats     *Stats
	conn      ConnectionReporter
	queue     DepthReporter
	startedAt time.Time
	now       func() time.Time
}

func NewObserver(stats *Stats, conn ConnectionReporter, queue DepthReporter, startedAt time.Time) *Observer {
	if stats == nil {
		stats = NewStats()
	}
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	return &Observer{stats: stats, conn: conn, queue: queue, startedAt: startedAt, now: time.Now}
}

// HealthReport is the body of GET /health.
type HealthReport struct {
	Status          string     `json:"status"`
	UptimeSeconds   int64      `json:"uptime_seconds"`
	EventsProcessed uint64     `json:"events_processed"`
	LastEventTime   *time.Time `json:"last_event_time"`
	BrokerConnected bool       `json:"broker_connected"`
}

// MetricsReport is the body of GET /metrics.
type MetricsReport struct {
	EventsPerMinute         float64 `json:"events_per_minute"`
	AverageProcessingTimeMs float64 `json:"average_processing_time_ms"`
	QueueDepth              int     `json:"queue_depth"`
}

func (o *Observer) Snapshot() model.HealthSnapshot {
	snap := model.HealthSnapshot{
		StartedAt:             o.startedAt,
		TakenAt:               o.now(),
		EventsProcessed:       o.stats.EventsProcessed(),
		AverageProcessingTime: o.stats.AverageProcessingTime(),
		Connection:            model.ConnectionState{Phase: model.PhaseDisconnected},
	}
	if last, ok := o.stats.LastEventTime(); ok {
		snap.LastEventTime = &last
	}
	if o.queue != nil {
		snap.QueueDepth = o.queue.Len()
	}
	if o.conn != nil {
		snap.Connection = o.conn.HealthCheck()
	}
	return snap
}

func (o *Observer) Health() HealthReport {
	snap := o.Snapshot()
	connected := snap.Connection.Connected()
	status := StatusHealthy
	if !connected {
		status = StatusDegraded
	}
	return HealthReport{
		Status:          status,
		UptimeSeconds:   int64(snap.Uptime() / time.Second),
		EventsProcessed: snap.EventsProcessed,
		LastEventTime:   snap.LastEventTime,
		BrokerConnected: connected,
	}
}

func (o *Observer) Metrics() MetricsReport {
	snap := o.Snapshot()
	minutes := snap.Uptime().Minutes()
	if minutes < minUptimeMinutes {
		minutes = minUptimeMinutes
	}
	return MetricsReport{
		EventsPerMinute:         float64(snap.EventsProcessed) / minutes,
		AverageProcessingTimeMs: float64(snap.AverageProcessingTime) / float64(time.Millisecond),
		QueueDepth:              snap.QueueDepth,
	}
}
