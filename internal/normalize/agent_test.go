package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclens/soclens/internal/model"
)

func TestCanonicalAgentID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"numeric id zero-padded", "1", "AGT-001"},
		{"two digits zero-padded", "42", "AGT-042"},
		{"three digits untouched", "007", "AGT-007"},
		{"long id untouched", "1024", "AGT-1024"},
		{"already prefixed is a no-op", "AGT-001", "AGT-001"},
		{"non-numeric short id not padded", "ab", "AGT-ab"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalAgentID(tt.raw)
			assert.Equal(t, tt.want, got)
			// Idempotent: a second application changes nothing.
			assert.Equal(t, got, CanonicalAgentID(got))
		})
	}
}

func TestAgent_OnlineWithinKeepaliveWindow(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	raw := map[string]any{
		"id":            "3",
		"name":          "db-01",
		"ip":            "10.0.0.9",
		"os":            map[string]any{"name": "Ubuntu", "version": "22.04"},
		"version":       "4.7.0",
		"status":        "active",
		"lastKeepAlive": "2026-08-28T11:58:00Z",
	}

	agent, err := Agent(raw, now, 5*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "AGT-003", agent.ID)
	assert.Equal(t, "db-01", agent.Name)
	assert.Equal(t, "Ubuntu 22.04", agent.OS)
	assert.Equal(t, model.AgentOnline, agent.Status)
	assert.Equal(t, time.Date(2026, 8, 28, 11, 58, 0, 0, time.UTC), agent.LastSeen)
}

func TestAgent_StatusDerivation(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  map[string]any
		want model.AgentStatus
	}{
		{
			"stale keepalive means offline",
			map[string]any{"id": "1", "lastKeepAlive": "2026-08-28T11:00:00Z"},
			model.AgentOffline,
		},
		{
			"status code 4 overrides fresh keepalive",
			map[string]any{"id": "1", "status_code": float64(4), "lastKeepAlive": "2026-08-28T11:59:00Z"},
			model.AgentOffline,
		},
		{
			"status code 5 overrides fresh keepalive",
			map[string]any{"id": "1", "status_code": float64(5), "lastKeepAlive": "2026-08-28T11:59:00Z"},
			model.AgentOffline,
		},
		{
			"disconnected status means offline",
			map[string]any{"id": "1", "status": "disconnected", "lastKeepAlive": "2026-08-28T11:59:00Z"},
			model.AgentOffline,
		},
		{
			"never connected means offline",
			map[string]any{"id": "1", "status": "never_connected"},
			model.AgentOffline,
		},
		{
			"boundary keepalive is still online",
			map[string]any{"id": "1", "lastKeepAlive": "2026-08-28T11:55:00Z"},
			model.AgentOnline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, err := Agent(tt.raw, now, 5*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, tt.want, agent.Status)
		})
	}
}

func TestAgent_MissingIDRejected(t *testing.T) {
	_, err := Agent(map[string]any{"name": "ghost"}, time.Now(), time.Minute)
	assert.Error(t, err)
}

func TestAgent_FallsBackToDateAdd(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	raw := map[string]any{
		"id":      "9",
		"dateAdd": "2026-08-01T00:00:00Z",
	}

	agent, err := Agent(raw, now, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), agent.LastSeen)
	assert.Equal(t, "N/A", agent.IP)
	assert.Equal(t, "Unknown", agent.OS)
}
