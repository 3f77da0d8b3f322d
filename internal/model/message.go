package model

import "time"

// Message types emitted to live-view sessions. A session receives exactly
// one snapshot per stream on connect and a delta after every poll cycle
// that accepted new records.
const (
	MessageSnapshot = "snapshot"
	MessageDelta    = "delta"
)

// Stream names carried in every live message.
const (
	StreamAlerts = "alerts"
	StreamAgents = "agents"
)

// Envelope frames every message pushed over the session transport.
type Envelope struct {
	Type      string    `json:"type"`
	Stream    string    `json:"stream"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSnapshot builds a snapshot envelope for a stream.
func NewSnapshot(stream string, data any) Envelope {
	return Envelope{Type: MessageSnapshot, Stream: stream, Data: data, Timestamp: time.Now().UTC()}
}

// NewDelta builds a delta envelope for a stream.
func NewDelta(stream string, data any) Envelope {
	return Envelope{Type: MessageDelta, Stream: stream, Data: data, Timestamp: time.Now().UTC()}
}
