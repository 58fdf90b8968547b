package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solanaIndexer/internal/model"
	"solanaIndexer/internal/queue"
)

// Batcher consumes queued events until the channel is closed.
type Batcher interface {
	Run(ctx context.Context, items <-chan model.CanonicalEvent) error
}

// Runner wires producers, the queue, the batcher and the health server.
type Runner struct {
	queue   *queue.Queue
	batcher Batcher
	closer  io.Closer
	serve   func(context.Context) error
	logger  *zap.Logger
}

// NewRunner builds a Runner. closer is closed after the final flush; serve, when set,
// runs for the lifetime of the pipeline including the drain.
func NewRunner(q *queue.Queue, batcher Batcher, closer io.Closer, serve func(context.Context) error, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{queue: q, batcher: batcher, closer: closer, serve: serve, logger: logger}
}

// Run starts every producer and blocks until they finish or ctx ends. It then closes
// the queue, waits for the batcher to flush what remains, and closes the publisher.
// In-flight publishes are never aborted.
func (r *Runner) Run(ctx context.Context, producers ...Producer) error {
	if r.queue == nil {
		return fmt.Errorf("queue is nil")
	}
	if r.batcher == nil {
		return fmt.Errorf("batcher is nil")
	}

	pipelineCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	batchDone := make(chan error, 1)
	go func() {
		batchDone <- r.batcher.Run(context.WithoutCancel(ctx), r.queue.Items())
	}()

	serveCtx, stopServe := context.WithCancel(context.WithoutCancel(ctx))
	defer stopServe()
	serveDone := make(chan error, 1)
	if r.serve != nil {
		go func() {
			err := r.serve(serveCtx)
			if err != nil {
				r.logger.Error("health server failed", zap.Error(err))
				cancel()
			}
			serveDone <- err
		}()
	} else {
		serveDone <- nil
	}

	g, gctx := errgroup.WithContext(pipelineCtx)
	for _, produce := range producers {
		produce := produce
		g.Go(func() error {
			return produce(gctx, r.queue)
		})
	}
	produceErr := g.Wait()
	if errors.Is(produceErr, context.Canceled) {
		produceErr = nil
	}
	if produceErr != nil {
		r.logger.Error("producer failed", zap.Error(produceErr))
	}

	r.logger.Info("producers stopped, draining queue", zap.Int("queue_depth", r.queue.Len()))
	r.queue.Close()
	batchErr := <-batchDone

	var closeErr error
	if r.closer != nil {
		closeErr = r.closer.Close()
	}

	stopServe()
	serveErr := <-serveDone

	r.logger.Info("pipeline stopped")
	return errors.Join(produceErr, batchErr, closeErr, serveErr)
}
