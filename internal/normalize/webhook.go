package normalize

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/soclens/soclens/internal/model"
)

// Webhook converts one pushed JSON payload into a NormalizedEvent. Webhook
// senders are loosely shaped, so anything the payload omits falls back to
// push-intake defaults. A missing or unparseable timestamp takes the receive
// instant rather than the epoch; pushed events are live by definition.
func Webhook(raw map[string]any, now time.Time) model.NormalizedEvent {
	ts := getTime(raw, "timestamp")
	if ts.Equal(time.Unix(0, 0).UTC()) {
		ts = now
	}

	fullLog := getString(raw, "", "full_log")
	if fullLog == "" {
		if body, err := json.Marshal(raw); err == nil {
			fullLog = string(body)
		}
	}

	return model.NormalizedEvent{
		ID:              uuid.NewString(),
		Timestamp:       ts,
		AgentID:         getString(raw, "webhook_agent", "agent_id"),
		AgentName:       getString(raw, "webhook_agent", "agent_name"),
		AgentIP:         getString(raw, "unknown", "agent_ip"),
		RuleID:          getString(raw, "1001", "rule_id"),
		RuleDescription: getString(raw, "Webhook event", "rule_description"),
		RuleLevel:       getInt(raw, 5, "severity"),
		DecoderName:     "webhook",
		Location:        "webhook",
		ManagerName:     "wazuh-server",
		InputType:       "log",
		FullLog:         fullLog,
	}
}
