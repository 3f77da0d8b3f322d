package model

import "time"

// AgentStatus is the derived connection state of a monitored endpoint.
// There are no intermediate states.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "Online"
	AgentOffline AgentStatus = "Offline"
)

// NormalizedAgent is one monitored endpoint after normalization. ID carries
// the canonical AGT- prefix regardless of how the upstream reports it.
type NormalizedAgent struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	IP       string      `json:"ip"`
	OS       string      `json:"os"`
	Status   AgentStatus `json:"status"`
	LastSeen time.Time   `json:"lastSeen"`
	Version  string      `json:"version,omitempty"`
}

// Key returns the deduplication key for the live cache.
func (a NormalizedAgent) Key() string { return a.ID }

// EventTime returns the last keepalive instant, used as this pipeline's
// watermark dimension.
func (a NormalizedAgent) EventTime() time.Time { return a.LastSeen }
