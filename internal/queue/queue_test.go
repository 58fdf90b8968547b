package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solanaIndexer/internal/model"
)

func event(sig string) model.CanonicalEvent {
	return model.CanonicalEvent{EventType: model.EventTypeSwap, Data: model.SwapData{Signature: sig}}
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
}

func TestQueueFIFO(t *testing.T) {
	q, err := New(3)
	require.NoError(t, err)
	ctx := context.Background()

	for _, sig := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, event(sig)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		got, ok, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got.Signature())
	}
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	q, err := New(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, event("a")))
	require.NoError(t, q.Enqueue(ctx, event("b")))

	enqueued := make(chan error, 1)
	go func() {
		enqueued <- q.Enqueue(ctx, event("c"))
	}()

	select {
	case err := <-enqueued:
		t.Fatalf("enqueue should block while full, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 2, q.Len())

	_, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	select {
	case err := <-enqueued:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("enqueue did not resume after dequeue")
	}
	assert.LessOrEqual(t, q.Len(), q.Cap())
}

func TestEnqueueRespectsContext(t *testing.T) {
	q, err := New(1)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), event("a")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = q.Enqueue(ctx, event("b"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCloseDrainsThenEndsStream(t *testing.T) {
	q, err := New(4)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, event("a")))
	require.NoError(t, q.Enqueue(ctx, event("b")))

	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Enqueue(ctx, event("c")), ErrClosed)

	var got []string
	for ev := range q.Items() {
		got = append(got, ev.Signature())
	}
	assert.Equal(t, []string{"a", "b"}, got)

	_, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCloseReleasesBlockedProducers(t *testing.T) {
	q, err := New(1)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), event("a")))

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- q.Enqueue(context.Background(), event(fmt.Sprintf("p%d", i)))
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, ErrClosed)
	}
}

func TestConcurrentProducersPreserveOrderPerProducer(t *testing.T) {
	q, err := New(8)
	require.NoError(t, err)
	ctx := context.Background()

	const producers, perProducer = 4, 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Enqueue(ctx, event(fmt.Sprintf("%d:%03d", p, i))))
			}
		}(p)
	}
	go func() {
		wg.Wait()
		q.Close()
	}()

	last := make(map[string]string)
	total := 0
	for ev := range q.Items() {
		assert.LessOrEqual(t, q.Len(), q.Cap())
		sig := ev.Signature()
		producer := sig[:1]
		if prev, ok := last[producer]; ok {
			assert.Less(t, prev, sig)
		}
		last[producer] = sig
		total++
	}
	assert.Equal(t, producers*perProducer, total)
}
