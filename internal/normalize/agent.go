package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/soclens/soclens/internal/model"
)

// AgentIDPrefix is the canonical device-id prefix. Raw numeric ids are
// zero-padded to three digits before prefixing.
const AgentIDPrefix = "AGT-"

// CanonicalAgentID derives the canonical prefixed id from a raw upstream id.
// Applying it to an already-prefixed id is a no-op.
func CanonicalAgentID(raw string) string {
	if raw == "" {
		return raw
	}
	if strings.HasPrefix(raw, AgentIDPrefix) {
		return raw
	}
	if len(raw) < 3 && isDigits(raw) {
		raw = strings.Repeat("0", 3-len(raw)) + raw
	}
	return AgentIDPrefix + raw
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Agent converts one raw Wazuh manager agent record into a NormalizedAgent.
// now is the poll instant; offlineAfter is the keepalive freshness window
// beyond which an agent is considered offline.
func Agent(raw map[string]any, now time.Time, offlineAfter time.Duration) (model.NormalizedAgent, error) {
	id := getString(raw, "", "id")
	if id == "" {
		return model.NormalizedAgent{}, fmt.Errorf("normalize agent: %w", errMissingID)
	}

	lastSeen := getTime(raw, "lastKeepAlive")
	if lastSeen.Equal(time.Unix(0, 0).UTC()) {
		lastSeen = getTime(raw, "dateAdd")
	}

	osName := getString(raw, "Unknown", "os", "name")
	if version := getString(raw, "", "os", "version"); version != "" {
		osName = osName + " " + version
	}

	agent := model.NormalizedAgent{
		ID:       CanonicalAgentID(id),
		Name:     getString(raw, "unknown", "name"),
		IP:       getString(raw, "N/A", "ip"),
		OS:       osName,
		Status:   agentStatus(raw, lastSeen, now, offlineAfter),
		LastSeen: lastSeen,
		Version:  getString(raw, "", "version"),
	}

	return agent, nil
}

// agentStatus derives Online/Offline. Upstream status codes 4 and 5 mean
// disconnected regardless of keepalive; otherwise an agent is online iff its
// last keepalive falls within the freshness window.
func agentStatus(raw map[string]any, lastSeen, now time.Time, offlineAfter time.Duration) model.AgentStatus {
	code := getInt(raw, -1, "status_code")
	if code == 4 || code == 5 {
		return model.AgentOffline
	}
	if status := getString(raw, "", "status"); status == "disconnected" || status == "never_connected" {
		return model.AgentOffline
	}
	if offlineAfter <= 0 {
		offlineAfter = 5 * time.Minute
	}
	if now.Sub(lastSeen) <= offlineAfter {
		return model.AgentOnline
	}
	return model.AgentOffline
}
