package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"solanaIndexer/internal/aggregate"
	"solanaIndexer/internal/dex"
	"solanaIndexer/internal/jsoncodec"
	"solanaIndexer/internal/model"
	"solanaIndexer/internal/queue"
	"solanaIndexer/internal/source"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches []model.Batch
	closed  bool
	order   []string
}

func (p *recordingPublisher) PublishBatch(_ context.Context, batch model.Batch) model.BatchSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, batch)
	p.order = append(p.order, "publish:"+string(batch.Reason))
	return model.BatchSummary{Published: batch.Len()}
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.order = append(p.order, "close")
	return nil
}

type counters struct {
	mu        sync.Mutex
	malformed map[string]int
	skipped   map[string]int
}

func newCounters() *counters {
	return &counters{malformed: map[string]int{}, skipped: map[string]int{}}
}

func (c *counters) RecordMalformed(venue string) {
	c.mu.Lock()
	c.malformed[venue]++
	c.mu.Unlock()
}

func (c *counters) RecordSkipped(venue string) {
	c.mu.Lock()
	c.skipped[venue]++
	c.mu.Unlock()
}

func canonical(sig string) model.CanonicalEvent {
	return model.CanonicalEvent{EventType: model.EventTypeSwap, Chain: "solana", Dex: "raydium", Data: model.SwapData{Signature: sig}}
}

func newPipeline(t *testing.T, capacity, batchSize int, window time.Duration) (*queue.Queue, *recordingPublisher, *Runner) {
	t.Helper()
	q, err := queue.New(capacity)
	require.NoError(t, err)
	pub := &recordingPublisher{}
	agg, err := aggregate.NewAggregator(aggregate.Config{BatchSize: batchSize, FlushInterval: window}, pub, nil, nil)
	require.NoError(t, err)
	return q, pub, NewRunner(q, agg, pub, nil, nil)
}

func TestRunnerReplaysFailuresAndClosesAfterFinalFlush(t *testing.T) {
	_, pub, runner := newPipeline(t, 10, 2, time.Hour)

	var failures []model.FailedEvent
	for _, sig := range []string{"a", "b", "c", "d", "e"} {
		failures = append(failures, model.FailedEvent{Event: canonical(sig), MessageID: "id-" + sig})
	}

	require.NoError(t, runner.Run(context.Background(), FailedEvents(failures)))

	require.Len(t, pub.batches, 3)
	assert.Equal(t, "id-a", pub.batches[0].Events[0].MessageID)
	assert.Equal(t, "id-e", pub.batches[2].Events[0].MessageID)
	assert.Equal(t, 2, pub.batches[0].Len())
	assert.Equal(t, 2, pub.batches[1].Len())
	assert.Equal(t, 1, pub.batches[2].Len())
	assert.Equal(t, []string{"publish:size", "publish:size", "publish:shutdown", "close"}, pub.order)
}

func TestRunnerShutdownFlushesBufferedEventsOnce(t *testing.T) {
	_, pub, runner := newPipeline(t, 10, 10, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	enqueued := make(chan struct{})
	producer := func(ctx context.Context, q Enqueuer) error {
		for _, sig := range []string{"e1", "e2", "e3"} {
			if err := q.Enqueue(ctx, canonical(sig)); err != nil {
				return err
			}
		}
		close(enqueued)
		<-ctx.Done()
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, producer) }()

	<-enqueued
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop")
	}

	require.Len(t, pub.batches, 1)
	assert.Equal(t, model.FlushShutdown, pub.batches[0].Reason)
	assert.Equal(t, 3, pub.batches[0].Len())
	assert.True(t, pub.closed)
}

func TestRunnerReturnsProducerError(t *testing.T) {
	_, pub, runner := newPipeline(t, 10, 10, time.Hour)
	boom := errors.New("boom")

	err := runner.Run(context.Background(), func(ctx context.Context, q Enqueuer) error {
		if err := q.Enqueue(ctx, canonical("x")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.Len(t, pub.batches, 1)
	assert.True(t, pub.closed)
}

func signature(seed byte) string {
	var sig solana.Signature
	for i := range sig {
		sig[i] = seed + byte(i)
	}
	return sig.String()
}

func writeInput(t *testing.T, events []model.RawDecodedEvent, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decoded.jsonl")
	var data []byte
	for _, ev := range events {
		line, err := jsoncodec.Marshal(ev)
		require.NoError(t, err)
		data = append(data, line...)
		data = append(data, '\n')
	}
	data = append(data, extra...)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFanOutRoutesPerVenue(t *testing.T) {
	accounts := make([]solana.PublicKey, 18)
	for i := range accounts {
		accounts[i][0] = byte(i + 1)
	}

	var events []model.RawDecodedEvent
	for i := 0; i < 5; i++ {
		events = append(events, model.RawDecodedEvent{
			Chain:       "solana",
			Venue:       dex.VenueRaydiumAMMV4,
			Signature:   signature(byte(10 * (i + 1))),
			Slot:        uint64(100 + i),
			Accounts:    accounts,
			Instruction: model.RaydiumSwapBaseIn{AmountIn: uint64(1000 + i), MinimumAmountOut: 900},
		})
	}
	events = append(events,
		model.RawDecodedEvent{Venue: dex.VenuePumpfun, Signature: signature(1), Instruction: model.Unrecognized{Name: "pumpfun.create"}},
		model.RawDecodedEvent{Venue: dex.VenueRaydiumAMMV4, Signature: "bad", Instruction: model.RaydiumSwapBaseIn{AmountIn: 1}},
		model.RawDecodedEvent{Venue: "orca", Signature: signature(2), Instruction: model.Unrecognized{Name: "orca.swap"}},
	)
	path := writeInput(t, events, "garbage line\n")

	registry, err := dex.NewRegistry(dex.Config{})
	require.NoError(t, err)
	rec := newCounters()

	_, pub, runner := newPipeline(t, 4, 2, time.Hour)
	producer := FanOut(source.NewJSONLSource(path, nil), registry.Venues(), func(q Enqueuer) *Router {
		return NewRouter(registry, q, rec, nil)
	}, nil)

	require.NoError(t, runner.Run(context.Background(), producer))

	var published []model.CanonicalEvent
	for _, b := range pub.batches {
		assert.LessOrEqual(t, b.Len(), 2)
		published = append(published, b.Events...)
	}
	require.Len(t, published, 5)
	for i, ev := range published {
		assert.Equal(t, uint64(100+i), ev.Data.EventSlot(), "raydium order preserved")
	}
	assert.Equal(t, 1, rec.skipped[dex.VenuePumpfun])
	assert.Equal(t, 1, rec.malformed[dex.VenueRaydiumAMMV4])
	assert.Equal(t, 1, rec.malformed["orca"])
	assert.True(t, pub.closed)
}

func TestRouterReturnsClosedQueue(t *testing.T) {
	q, err := queue.New(1)
	require.NoError(t, err)
	q.Close()

	registry, err := dex.NewRegistry(dex.Config{})
	require.NoError(t, err)
	router := NewRouter(registry, q, nil, nil)

	err = router.Route(context.Background(), model.RawDecodedEvent{
		Venue:       dex.VenueRaydiumAMMV4,
		Signature:   signature(3),
		Instruction: model.RaydiumSwapBaseOut{MaxAmountIn: 5, AmountOut: 4},
	})
	assert.ErrorIs(t, err, queue.ErrClosed)
}

func TestParseVenues(t *testing.T) {
	supported := []string{dex.VenuePumpfun, dex.VenueRaydiumAMMV4}

	got, err := ParseVenues([]string{" Raydium-AMM-v4 ", "pumpfun", "pumpfun", ""}, supported)
	require.NoError(t, err)
	assert.Equal(t, []string{dex.VenueRaydiumAMMV4, dex.VenuePumpfun}, got)

	_, err = ParseVenues([]string{"orca"}, supported)
	assert.Error(t, err)
}

func TestParsePairs(t *testing.T) {
	pairs, err := ParsePairs([]string{
		"0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc=0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48:0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
	})
	require.NoError(t, err)
	tokens, ok := pairs["0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"]
	require.True(t, ok)
	assert.Equal(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", tokens.Token0)

	_, err = ParsePairs([]string{"0x1234=0x1:0x2"})
	assert.Error(t, err)
	_, err = ParsePairs([]string{"missing-separator"})
	assert.Error(t, err)
}

type burstSource struct {
	events []model.RawDecodedEvent
	sent   chan struct{}
}

func (s *burstSource) Run(ctx context.Context, handle source.Handler) (source.Result, error) {
	for _, ev := range s.events {
		if err := handle(ctx, ev); err != nil {
			return source.Result{}, err
		}
	}
	close(s.sent)
	<-ctx.Done()
	return source.Result{}, ctx.Err()
}

type stubNormalizer struct{}

func (stubNormalizer) Normalize(raw model.RawDecodedEvent, _ time.Time) (*model.CanonicalEvent, error) {
	event := canonical(raw.Signature)
	return &event, nil
}

type blockingEnqueuer struct {
	entered chan struct{}
	once    sync.Once
}

func (q *blockingEnqueuer) Enqueue(ctx context.Context, _ model.CanonicalEvent) error {
	q.once.Do(func() { close(q.entered) })
	<-ctx.Done()
	return ctx.Err()
}

func TestFanOutLogsEventsDroppedOnCancel(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	src := &burstSource{sent: make(chan struct{})}
	for i := 0; i < 10; i++ {
		src.events = append(src.events, model.RawDecodedEvent{Venue: dex.VenuePumpfun, Signature: signature(byte(i + 1))})
	}
	q := &blockingEnqueuer{entered: make(chan struct{})}
	producer := FanOut(src, []string{dex.VenuePumpfun}, func(q Enqueuer) *Router {
		return NewRouter(stubNormalizer{}, q, nil, logger)
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- producer(ctx, q) }()

	<-q.entered
	<-src.sent
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("fan-out did not stop")
	}

	entries := logs.FilterMessage("decoded events dropped on shutdown").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(9), entries[0].ContextMap()["count"])
}
