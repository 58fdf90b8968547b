package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solanaIndexer/internal/jsoncodec"
	"solanaIndexer/internal/model"
)

type fixedConn struct {
	state model.ConnectionState
}

func (f fixedConn) HealthCheck() model.ConnectionState { return f.state }

type fixedDepth int

func (d fixedDepth) Len() int { return int(d) }

func observerAt(stats *Stats, phase model.ConnectionPhase, depth int, uptime time.Duration) *Observer {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	o := NewObserver(stats, fixedConn{state: model.ConnectionState{Phase: phase}}, fixedDepth(depth), now.Add(-uptime))
	o.now = func() time.Time { return now }
	return o
}

func TestStatsRecordPublished(t *testing.T) {
	s := NewStats()
	_, ok := s.LastEventTime()
	assert.False(t, ok)
	assert.Zero(t, s.AverageProcessingTime())

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.RecordPublished(at, 10*time.Millisecond)
	s.RecordPublished(at.Add(time.Second), 30*time.Millisecond)

	assert.Equal(t, uint64(2), s.EventsProcessed())
	last, ok := s.LastEventTime()
	require.True(t, ok)
	assert.Equal(t, at.Add(time.Second), last)
	assert.Equal(t, 20*time.Millisecond, s.AverageProcessingTime())
}

func TestStatsConcurrentWritersNeverDoubleCount(t *testing.T) {
	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.RecordPublished(time.Now(), time.Millisecond)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(8000), s.EventsProcessed())
}

func TestHealthReportReflectsConnection(t *testing.T) {
	stats := NewStats()
	stats.RecordPublished(time.Date(2024, 1, 1, 11, 59, 0, 0, time.UTC), 0)

	report := observerAt(stats, model.PhaseConnected, 0, 90*time.Second).Health()
	assert.Equal(t, StatusHealthy, report.Status)
	assert.True(t, report.BrokerConnected)
	assert.Equal(t, int64(90), report.UptimeSeconds)
	assert.Equal(t, uint64(1), report.EventsProcessed)
	require.NotNil(t, report.LastEventTime)

	report = observerAt(stats, model.PhaseDegraded, 0, time.Minute).Health()
	assert.Equal(t, StatusDegraded, report.Status)
	assert.False(t, report.BrokerConnected)
}

func TestMetricsReportRate(t *testing.T) {
	stats := NewStats()
	for i := 0; i < 120; i++ {
		stats.RecordPublished(time.Now(), 4*time.Millisecond)
	}

	report := observerAt(stats, model.PhaseConnected, 7, 2*time.Minute).Metrics()
	assert.InDelta(t, 60.0, report.EventsPerMinute, 0.001)
	assert.InDelta(t, 4.0, report.AverageProcessingTimeMs, 0.001)
	assert.Equal(t, 7, report.QueueDepth)
}

func TestMetricsReportAtZeroUptimeIsFinite(t *testing.T) {
	stats := NewStats()
	stats.RecordPublished(time.Now(), 0)

	report := observerAt(stats, model.PhaseConnected, 0, 0).Metrics()
	assert.InDelta(t, 60.0, report.EventsPerMinute, 0.001)
}

func TestHealthEndpointStatusCodes(t *testing.T) {
	cases := []struct {
		phase model.ConnectionPhase
		code  int
		body  string
	}{
		{model.PhaseConnected, http.StatusOK, `"status":"healthy"`},
		{model.PhaseDegraded, http.StatusServiceUnavailable, `"broker_connected":false`},
		{model.PhaseDisconnected, http.StatusServiceUnavailable, `"status":"degraded"`},
	}
	for _, tc := range cases {
		t.Run(string(tc.phase), func(t *testing.T) {
			h := Handler(observerAt(NewStats(), tc.phase, 0, time.Minute), nil, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tc.body)
			assert.Contains(t, rec.Body.String(), `"last_event_time":null`)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := Handler(observerAt(NewStats(), model.PhaseConnected, 3, time.Minute), nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var report MetricsReport
	require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.QueueDepth)
	assert.Zero(t, report.EventsPerMinute)
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observer := observerAt(NewStats(), model.PhaseConnected, 5, time.Minute)
	m := NewMetrics(reg, observer)
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	batch := model.Batch{
		Reason: model.FlushSize,
		Events: []model.CanonicalEvent{{EventType: model.EventTypeSwap}, {EventType: model.EventTypeTrade}},
	}
	m.RecordFlush(batch, model.BatchSummary{
		Published: 1,
		Failed:    1,
		Outcomes: []model.PublishOutcome{
			{Acked: true},
			{Reason: "rejected", Err: errors.New("nack")},
		},
	})
	m.RecordMalformed("raydium-amm-v4")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishedTotal.WithLabelValues("swap")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failedTotal.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.flushesTotal.WithLabelValues("size")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.malformedTotal.WithLabelValues("raydium-amm-v4")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.brokerUp))

	h := Handler(observer, reg, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "solana_indexer_batch_flushes_total"))
}
