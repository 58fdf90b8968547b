package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"solanaIndexer/internal/model"
)

// Metrics records pipeline activity as Prometheus collectors.
type Metrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	publishedTotal *prometheus.CounterVec
	failedTotal    *prometheus.CounterVec
	flushesTotal   *prometheus.CounterVec
	batchSize      prometheus.Histogram
	malformedTotal *prometheus.CounterVec
	skippedTotal   *prometheus.CounterVec
	queueDepth     prometheus.GaugeFunc
	brokerUp       prometheus.GaugeFunc
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solana_indexer",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics builds the collectors. observer backs the queue depth and broker gauges.
func NewMetrics(registerer prometheus.Registerer, observer *Observer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registerer:     registerer,
		publishedTotal: newCounterVec("events_published_total", "Events acknowledged by the broker", []string{"event_type"}),
		failedTotal:    newCounterVec("events_failed_total", "Events dropped after publish attempts were exhausted", []string{"reason"}),
		flushesTotal:   newCounterVec("batch_flushes_total", "Batches handed to the publisher", []string{"reason"}),
		malformedTotal: newCounterVec("events_malformed_total", "Decoded events rejected by a normalizer", []string{"venue"}),
		skippedTotal:   newCounterVec("events_skipped_total", "Decoded events not of interest", []string{"venue"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "solana_indexer",
			Name:      "batch_size",
			Help:      "Events per flushed batch",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}
	m.queueDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "solana_indexer",
		Name:      "queue_depth",
		Help:      "Events buffered between producers and the aggregator",
	}, func() float64 {
		if observer == nil {
			return 0
		}
		return float64(observer.Snapshot().QueueDepth)
	})
	m.brokerUp = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "solana_indexer",
		Name:      "broker_connected",
		Help:      "1 when the broker link is connected",
	}, func() float64 {
		if observer != nil && observer.Snapshot().Connection.Connected() {
			return 1
		}
		return 0
	})
	return m
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.publishedTotal,
		m.failedTotal,
		m.flushesTotal,
		m.batchSize,
		m.malformedTotal,
		m.skippedTotal,
		m.queueDepth,
		m.brokerUp,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordFlush counts a flushed batch and the terminal outcome of each message in it.
func (m *Metrics) RecordFlush(batch model.Batch, summary model.BatchSummary) {
	m.flushesTotal.WithLabelValues(string(batch.Reason)).Inc()
	m.batchSize.Observe(float64(batch.Len()))

	for i, outcome := range summary.Outcomes {
		if outcome.Acked {
			eventType := ""
			if i < batch.Len() {
				eventType = batch.Events[i].EventType
			}
			m.publishedTotal.WithLabelValues(eventType).Inc()
			continue
		}
		m.failedTotal.WithLabelValues(outcome.Reason).Inc()
	}
}

func (m *Metrics) RecordMalformed(venue string) {
	m.malformedTotal.WithLabelValues(venue).Inc()
}

func (m *Metrics) RecordSkipped(venue string) {
	m.skippedTotal.WithLabelValues(venue).Inc()
}
