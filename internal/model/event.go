// Package model defines the canonical entities shared by the pollers,
// normalizers, caches and the broadcast hub. Upstream record shapes never
// leak past the normalize package; everything downstream works with these
// types only.
package model

import "time"

// Severity defaults applied when the upstream record carries no level.
const (
	DefaultRuleLevel = 1
	HighSeverity     = 8
)

// NormalizedEvent is one security alert after normalization. Every field is
// populated; consumers never see an unset value.
type NormalizedEvent struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Index           string    `json:"index,omitempty"`
	AgentID         string    `json:"agentId"`
	AgentName       string    `json:"agentName"`
	AgentIP         string    `json:"agentIp"`
	RuleID          string    `json:"ruleId"`
	RuleDescription string    `json:"ruleDescription"`
	RuleLevel       int       `json:"ruleLevel"`
	RuleGroups      []string  `json:"ruleGroups"`
	RuleFiredTimes  int       `json:"ruleFiredtimes"`
	DecoderName     string    `json:"decoderName"`
	Location        string    `json:"location"`
	ManagerName     string    `json:"managerName"`
	InputType       string    `json:"inputType"`
	FullLog         string    `json:"fullLog"`
}

// Key returns the deduplication key for the live cache.
func (e NormalizedEvent) Key() string { return e.ID }

// EventTime returns the source-reported event time used for watermark
// comparison and cache trimming.
func (e NormalizedEvent) EventTime() time.Time { return e.Timestamp }

// Entity is anything the live pipelines cache and fan out: alerts and
// agents both satisfy it.
type Entity interface {
	Key() string
	EventTime() time.Time
}
