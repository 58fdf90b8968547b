package broker

import (
	"errors"

	"solanaIndexer/internal/model"
)

var (
	// ErrConnection means the broker link could not be established or was lost.
	ErrConnection = errors.New("broker connection error")
	// ErrSerialization means an event could not be encoded. It is never retried.
	ErrSerialization = errors.New("event serialization error")
	// ErrPublishRejected means the broker negatively acknowledged a message.
	ErrPublishRejected = errors.New("publish rejected by broker")
)

// failureReason maps a terminal publish error to the ledger reason.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrSerialization):
		return model.FailureSerialization
	case errors.Is(err, ErrConnection):
		return model.FailureConnection
	case errors.Is(err, ErrPublishRejected):
		return model.FailureRejected
	default:
		return model.FailureTransport
	}
}
