package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlert_FullRecord(t *testing.T) {
	raw := map[string]any{
		"_id":    "abc123",
		"_index": "wazuh-alerts-4.x-2026.08.28",
		"_source": map[string]any{
			"@timestamp": "2026-08-28T10:15:30.123Z",
			"agent":      map[string]any{"id": "001", "name": "web-01", "ip": "10.0.0.5"},
			"rule": map[string]any{
				"id":          "5710",
				"description": "sshd: Attempt to login using a non-existent user",
				"level":       float64(5),
				"groups":      []any{"syslog", "sshd"},
				"firedtimes":  float64(3),
			},
			"decoder":  map[string]any{"name": "sshd"},
			"location": "/var/log/auth.log",
			"manager":  map[string]any{"name": "manager-01"},
			"input":    map[string]any{"type": "log"},
			"full_log": "Aug 28 10:15:30 web-01 sshd[123]: Invalid user admin",
		},
	}

	ev, err := Alert(raw)
	require.NoError(t, err)

	assert.Equal(t, "abc123", ev.ID)
	assert.Equal(t, "wazuh-alerts-4.x-2026.08.28", ev.Index)
	assert.Equal(t, time.Date(2026, 8, 28, 10, 15, 30, 123000000, time.UTC), ev.Timestamp)
	assert.Equal(t, "001", ev.AgentID)
	assert.Equal(t, "web-01", ev.AgentName)
	assert.Equal(t, "5710", ev.RuleID)
	assert.Equal(t, 5, ev.RuleLevel)
	assert.Equal(t, []string{"syslog", "sshd"}, ev.RuleGroups)
	assert.Equal(t, 3, ev.RuleFiredTimes)
	assert.Equal(t, "sshd", ev.DecoderName)
	assert.Equal(t, "Aug 28 10:15:30 web-01 sshd[123]: Invalid user admin", ev.FullLog)
}

func TestAlert_MissingIDRejected(t *testing.T) {
	_, err := Alert(map[string]any{"_source": map[string]any{}})
	assert.Error(t, err)
}

func TestAlert_DefaultsApplied(t *testing.T) {
	ev, err := Alert(map[string]any{"_id": "bare"})
	require.NoError(t, err)

	assert.Equal(t, "000", ev.AgentID)
	assert.Equal(t, "unknown", ev.AgentName)
	assert.Equal(t, "0000", ev.RuleID)
	assert.Equal(t, "Unknown rule", ev.RuleDescription)
	assert.Equal(t, 1, ev.RuleLevel)
	assert.Equal(t, "wazuh", ev.DecoderName)
	assert.Equal(t, "wazuh-server", ev.ManagerName)
	assert.Equal(t, "log", ev.InputType)
	assert.Equal(t, "Security event from unknown", ev.FullLog)
	// Missing timestamps normalize to a fixed instant, never to poll time.
	assert.Equal(t, time.Unix(0, 0).UTC(), ev.Timestamp)
}

func TestAlert_Idempotent(t *testing.T) {
	raw := map[string]any{
		"_id": "same",
		"_source": map[string]any{
			"@timestamp": "2026-08-28T10:00:00Z",
			"rule":       map[string]any{"level": float64(7)},
		},
	}

	first, err := Alert(raw)
	require.NoError(t, err)
	second, err := Alert(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRuleLevel_FieldFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		source map[string]any
		want   int
	}{
		{"rule.level wins", map[string]any{"rule": map[string]any{"level": float64(9)}, "severity": float64(2)}, 9},
		{"severity next", map[string]any{"severity": float64(6)}, 6},
		{"level next", map[string]any{"level": float64(4)}, 4},
		{"string level parsed", map[string]any{"rule": map[string]any{"level": "11"}}, 11},
		{"nothing present", map[string]any{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ruleLevel(tt.source))
		})
	}
}

func TestFullLog_PrefersWindowsMessage(t *testing.T) {
	source := map[string]any{
		"data": map[string]any{
			"win": map[string]any{
				"system": map[string]any{"message": "An account failed to log on."},
			},
		},
		"full_log": "fallback line",
	}
	assert.Equal(t, "An account failed to log on.", fullLog(source, "host"))
}
