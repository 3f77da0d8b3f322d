package upstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclens/soclens/internal/model"
)

type stubSource struct {
	records []map[string]any
	err     error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(ctx context.Context, since time.Time, limit int) ([]map[string]any, error) {
	return s.records, s.err
}

func TestFallbackFetch_PrimaryPreferred(t *testing.T) {
	primary := &stubSource{records: []map[string]any{{"id": "001"}}}
	src := NewFallbackAgentSource(primary, func() []model.Entity {
		t.Fatal("fallback must not be consulted while the primary works")
		return nil
	})

	records, err := src.Fetch(context.Background(), time.Time{}, 100)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFallbackFetch_DerivesFromAlerts(t *testing.T) {
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	primary := &stubSource{err: errors.New("manager unreachable")}
	src := NewFallbackAgentSource(primary, func() []model.Entity {
		return []model.Entity{
			model.NormalizedEvent{ID: "1", AgentID: "001", AgentName: "web-01", AgentIP: "10.0.0.5", Timestamp: base},
			model.NormalizedEvent{ID: "2", AgentID: "001", AgentName: "web-01", AgentIP: "10.0.0.5", Timestamp: base.Add(time.Minute)},
			model.NormalizedEvent{ID: "3", AgentID: "002", AgentName: "db-01", AgentIP: "10.0.0.9", Timestamp: base},
		}
	})

	records, err := src.Fetch(context.Background(), time.Time{}, 100)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := map[string]map[string]any{}
	for _, r := range records {
		byID[r["id"].(string)] = r
	}
	// The newest alert per agent supplies the keepalive.
	assert.Equal(t, base.Add(time.Minute).Format(time.RFC3339Nano), byID["001"]["lastKeepAlive"])
	assert.Equal(t, "db-01", byID["002"]["name"])
}

func TestFallbackFetch_NoAlertsSurfacesError(t *testing.T) {
	primary := &stubSource{err: errors.New("manager unreachable")}
	src := NewFallbackAgentSource(primary, func() []model.Entity { return nil })

	_, err := src.Fetch(context.Background(), time.Time{}, 100)
	assert.Error(t, err)
}
