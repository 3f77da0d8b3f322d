package upstream

import (
	"context"
	"time"

	"github.com/soclens/soclens/internal/model"
)

// Source is the record-fetching surface both upstream clients expose; the
// poll pipelines consume it.
type Source interface {
	Name() string
	Fetch(ctx context.Context, since time.Time, limit int) ([]map[string]any, error)
}

var (
	_ Source = (*AlertSource)(nil)
	_ Source = (*WazuhClient)(nil)
	_ Source = (*FallbackAgentSource)(nil)
)

// FallbackAgentSource wraps the manager API client and, when it is
// unreachable, derives the agent set from recently seen alerts instead.
// A derived agent's keepalive is the newest alert it produced.
type FallbackAgentSource struct {
	primary Source
	events  func() []model.Entity
}

// NewFallbackAgentSource wraps primary with an event-derived fallback.
// events is typically the alert cache's Snapshot.
func NewFallbackAgentSource(primary Source, events func() []model.Entity) *FallbackAgentSource {
	return &FallbackAgentSource{primary: primary, events: events}
}

// Name identifies the source in logs and metrics.
func (s *FallbackAgentSource) Name() string { return s.primary.Name() + "+derived" }

// Fetch tries the manager API first. On error it synthesizes raw agent
// records from cached alerts; the pipeline treats those like any upstream
// record, so normalization and watermarking apply unchanged.
func (s *FallbackAgentSource) Fetch(ctx context.Context, since time.Time, limit int) ([]map[string]any, error) {
	records, err := s.primary.Fetch(ctx, since, limit)
	if err == nil {
		return records, nil
	}

	type seen struct {
		name string
		ip   string
		last time.Time
	}
	byID := map[string]seen{}
	for _, entity := range s.events() {
		ev, ok := entity.(model.NormalizedEvent)
		if !ok {
			continue
		}
		cur, exists := byID[ev.AgentID]
		if !exists || ev.Timestamp.After(cur.last) {
			byID[ev.AgentID] = seen{name: ev.AgentName, ip: ev.AgentIP, last: ev.Timestamp}
		}
	}
	if len(byID) == 0 {
		// Nothing to derive from; surface the API error so the cycle
		// retains its watermark and retries.
		return nil, err
	}

	derived := make([]map[string]any, 0, len(byID))
	for id, v := range byID {
		if len(derived) >= limit && limit > 0 {
			break
		}
		derived = append(derived, map[string]any{
			"id":            id,
			"name":          v.name,
			"ip":            v.ip,
			"lastKeepAlive": v.last.UTC().Format(time.RFC3339Nano),
		})
	}
	return derived, nil
}
