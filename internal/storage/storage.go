package storage

import (
	"context"

	"solanaIndexer/internal/model"
)

// FailureSink persists events the publisher dropped.
type FailureSink interface {
	PutFailureBatch(ctx context.Context, failures []model.FailedEvent) error
}

// FailureSource reads back recorded failures for replay.
type FailureSource interface {
	LoadFailures(ctx context.Context) ([]model.FailedEvent, error)
}

// FailurePurger removes failures that were published on replay.
type FailurePurger interface {
	PurgeFailures(ctx context.Context, messageIDs []string) error
}

// NopSink discards failures. The publisher still logs and counts them.
type NopSink struct{}

func (NopSink) PutFailureBatch(context.Context, []model.FailedEvent) error { return nil }
