package model

import "time"

// Failure reasons recorded in the ledger.
const (
	FailureSerialization = "serialization"
	FailureRejected      = "rejected"
	FailureTransport     = "transport"
	FailureConnection    = "connection"
)

// FailedEvent records an event dropped after its publish attempts were exhausted.
type FailedEvent struct {
	Event     CanonicalEvent `json:"event"`
	MessageID string         `json:"message_id"`
	Reason    string         `json:"reason"`
	Error     string         `json:"error"`
	Attempts  int            `json:"attempts"`
	FailedAt  time.Time      `json:"failed_at"`
}
