package model

import "time"

// ConnectionPhase is the broker link status.
type ConnectionPhase string

const (
	PhaseDisconnected ConnectionPhase = "disconnected"
	PhaseConnecting   ConnectionPhase = "connecting"
	PhaseConnected    ConnectionPhase = "connected"
	PhaseDegraded     ConnectionPhase = "degraded"
)

// ConnectionState is the last known broker link status.
type ConnectionState struct {
	Phase     ConnectionPhase
	LastError string
	Since     time.Time
}

// Connected reports whether the link is fully healthy.
func (s ConnectionState) Connected() bool {
	return s.Phase == PhaseConnected
}
