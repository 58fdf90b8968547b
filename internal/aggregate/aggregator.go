package aggregate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solanaIndexer/internal/model"
)

// Config controls batching behavior.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
}

// BatchPublisher receives flushed batches. PublishBatch must return only once every
// message in the batch is accounted for.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, batch model.Batch) model.BatchSummary
}

// FlushRecorder observes completed flushes.
type FlushRecorder interface {
	RecordFlush(batch model.Batch, summary model.BatchSummary)
}

// Aggregator groups queued events into batches flushed by size or by age.
type Aggregator struct {
	cfg       Config
	publisher BatchPublisher
	recorder  FlushRecorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewAggregator(cfg Config, publisher BatchPublisher, recorder FlushRecorder, logger *zap.Logger) (*Aggregator, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0")
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("flush interval must be > 0")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:       cfg,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Run consumes items until the channel is closed, flushing the final partial batch once.
// The flush timer starts when the first event enters an empty batch. If ctx ends first,
// the buffered batch is still flushed before Run returns ctx.Err().
func (a *Aggregator) Run(ctx context.Context, items <-chan model.CanonicalEvent) error {
	publishCtx := context.WithoutCancel(ctx)

	var (
		events    = make([]model.CanonicalEvent, 0, a.cfg.BatchSize)
		createdAt time.Time
		timer     *time.Timer
		timerC    <-chan time.Time
	)

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = nil
		timerC = nil
	}

	flush := func(reason model.FlushReason) {
		batch := model.Batch{
			Events:    events,
			CreatedAt: createdAt,
			FlushedAt: a.now(),
			Reason:    reason,
		}
		events = make([]model.CanonicalEvent, 0, a.cfg.BatchSize)
		a.flush(publishCtx, batch)
	}

	defer stopTimer()

	for {
		select {
		case event, ok := <-items:
			if !ok {
				stopTimer()
				if len(events) > 0 {
					flush(model.FlushShutdown)
				}
				a.logger.Info("aggregator stopped", zap.String("reason", "queue closed"))
				return nil
			}

			if len(events) == 0 {
				createdAt = a.now()
				timer = time.NewTimer(a.cfg.FlushInterval)
				timerC = timer.C
			}
			events = append(events, event)

			if len(events) >= a.cfg.BatchSize {
				stopTimer()
				flush(model.FlushSize)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			if len(events) > 0 {
				flush(model.FlushTimeout)
			}
		case <-ctx.Done():
			stopTimer()
			if len(events) > 0 {
				flush(model.FlushShutdown)
			}
			return ctx.Err()
		}
	}
}

func (a *Aggregator) flush(ctx context.Context, batch model.Batch) {
	a.logger.Debug("flushing batch",
		zap.Int("batch_size", batch.Len()),
		zap.String("flush_reason", string(batch.Reason)),
	)

	summary := a.publisher.PublishBatch(ctx, batch)

	switch {
	case summary.ConnErr != nil:
		a.logger.Error("batch not published, broker unavailable",
			zap.Int("batch_size", batch.Len()),
			zap.Int("failed", summary.Failed),
			zap.Error(summary.ConnErr),
		)
	case summary.Failed > 0:
		a.logger.Warn("batch partially published",
			zap.Int("published", summary.Published),
			zap.Int("failed", summary.Failed),
		)
	default:
		a.logger.Debug("batch published", zap.Int("published", summary.Published))
	}

	if a.recorder != nil {
		a.recorder.RecordFlush(batch, summary)
	}
}
