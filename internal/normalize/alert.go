package normalize

import (
	"fmt"

	"github.com/soclens/soclens/internal/model"
)

// Alert converts one raw search hit into a NormalizedEvent. The raw record
// is the decoded hit with "_id", "_index" and "_source" keys, as returned by
// the upstream poller. Normalizing the same record twice yields identical
// output; the same record is routinely re-fetched before the watermark moves
// past it.
func Alert(raw map[string]any) (model.NormalizedEvent, error) {
	id := getString(raw, "", "_id")
	if id == "" {
		return model.NormalizedEvent{}, fmt.Errorf("normalize alert: %w", errMissingID)
	}

	source, ok := raw["_source"].(map[string]any)
	if !ok {
		source = map[string]any{}
	}

	agentName := getString(source, "unknown", "agent", "name")

	ev := model.NormalizedEvent{
		ID:              id,
		Timestamp:       getTime(source, "@timestamp"),
		Index:           getString(raw, "", "_index"),
		AgentID:         getString(source, "000", "agent", "id"),
		AgentName:       agentName,
		AgentIP:         getString(source, "unknown", "agent", "ip"),
		RuleID:          getString(source, "0000", "rule", "id"),
		RuleDescription: getString(source, "Unknown rule", "rule", "description"),
		RuleLevel:       ruleLevel(source),
		RuleGroups:      getStringSlice(source, "rule", "groups"),
		RuleFiredTimes:  getInt(source, 1, "rule", "firedtimes"),
		DecoderName:     getString(source, "wazuh", "decoder", "name"),
		Location:        getString(source, "unknown", "location"),
		ManagerName:     getString(source, "wazuh-server", "manager", "name"),
		InputType:       getString(source, "log", "input", "type"),
		FullLog:         fullLog(source, agentName),
	}

	return ev, nil
}

// ruleLevel resolves the severity across the field names upstream variants
// use: rule.level, then top-level severity, then top-level level.
func ruleLevel(source map[string]any) int {
	if lvl := getInt(source, -1, "rule", "level"); lvl >= 0 {
		return lvl
	}
	if lvl := getInt(source, -1, "severity"); lvl >= 0 {
		return lvl
	}
	if lvl := getInt(source, -1, "level"); lvl >= 0 {
		return lvl
	}
	return model.DefaultRuleLevel
}

// fullLog prefers the Windows event message, then full_log, then a
// synthesized line naming the agent.
func fullLog(source map[string]any, agentName string) string {
	if msg := getString(source, "", "data", "win", "system", "message"); msg != "" {
		return msg
	}
	if raw := getString(source, "", "full_log"); raw != "" {
		return raw
	}
	return fmt.Sprintf("Security event from %s", agentName)
}
