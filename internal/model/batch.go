package model

import "time"

// FlushReason records why a batch left the aggregator.
type FlushReason string

const (
	FlushSize     FlushReason = "size"
	FlushTimeout  FlushReason = "timeout"
	FlushShutdown FlushReason = "shutdown"
)

// Batch is an ordered group of events handed to the publisher together.
type Batch struct {
	Events    []CanonicalEvent
	CreatedAt time.Time
	FlushedAt time.Time
	Reason    FlushReason
}

// Len returns the number of events in the batch.
func (b Batch) Len() int {
	return len(b.Events)
}

// PublishOutcome is the terminal result of publishing one message.
type PublishOutcome struct {
	Signature string
	MessageID string
	Acked     bool
	Attempts  int
	Reason    string
	Err       error
}

// BatchSummary aggregates the outcomes of one publishBatch call.
// ConnErr is set only when the broker link was unavailable for the whole batch.
type BatchSummary struct {
	Published int
	Failed    int
	Outcomes  []PublishOutcome
	ConnErr   error
}
