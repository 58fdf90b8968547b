package indexer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"solanaIndexer/internal/dex"
	"solanaIndexer/internal/model"
)

// Normalizer is the decoding-to-canonical mapping used by the router.
type Normalizer interface {
	Normalize(raw model.RawDecodedEvent, indexedAt time.Time) (*model.CanonicalEvent, error)
}

// Enqueuer accepts canonical events, blocking while full.
type Enqueuer interface {
	Enqueue(ctx context.Context, event model.CanonicalEvent) error
}

// RouteRecorder counts events that never reach the queue.
type RouteRecorder interface {
	RecordMalformed(venue string)
	RecordSkipped(venue string)
}

// Router normalizes decoded events and enqueues the ones of interest.
type Router struct {
	normalizer Normalizer
	queue      Enqueuer
	recorder   RouteRecorder
	logger     *zap.Logger
	now        func() time.Time
}

func NewRouter(normalizer Normalizer, queue Enqueuer, recorder RouteRecorder, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		normalizer: normalizer,
		queue:      queue,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// Route handles one decoded event. Malformed and skipped events return nil.
// Enqueue errors, including queue.ErrClosed, are returned unchanged.
func (r *Router) Route(ctx context.Context, raw model.RawDecodedEvent) error {
	event, err := r.normalizer.Normalize(raw, r.now())
	if err != nil {
		if errors.Is(err, dex.ErrMalformed) || errors.Is(err, dex.ErrUnknownVenue) {
			if r.recorder != nil {
				r.recorder.RecordMalformed(raw.Venue)
			}
			r.logger.Warn("drop malformed event",
				zap.String("venue", raw.Venue),
				zap.String("signature", raw.Signature),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	if event == nil {
		if r.recorder != nil {
			r.recorder.RecordSkipped(raw.Venue)
		}
		r.logger.Debug("skip instruction",
			zap.String("venue", raw.Venue),
			zap.String("instruction", instructionTag(raw)),
			zap.String("signature", raw.Signature),
		)
		return nil
	}

	return r.queue.Enqueue(ctx, *event)
}

func instructionTag(raw model.RawDecodedEvent) string {
	if raw.Instruction == nil {
		return ""
	}
	return raw.Instruction.Tag()
}
