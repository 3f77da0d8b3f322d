// Package syslog accepts security events pushed over UDP, for deployments
// where endpoints forward directly instead of (or in addition to) the
// indexer poll path.
package syslog

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soclens/soclens/internal/model"
)

var (
	ruleRe        = regexp.MustCompile(`Rule:\s*(\d+)`)
	levelRe       = regexp.MustCompile(`Level:\s*(\d+)`)
	agentRe       = regexp.MustCompile(`Agent:\s*(\S+)`)
	descriptionRe = regexp.MustCompile(`Description:\s*(.+?)\s*$`)
)

// Parse extracts a normalized event from one datagram. Messages carry
// key-value markers (Rule:, Level:, Agent:, Description:); anything the
// message omits falls back to the same defaults the poll path uses, so a
// bare line still yields a usable event with the raw text as its log body.
func Parse(msg string, now time.Time) model.NormalizedEvent {
	msg = strings.TrimSpace(msg)

	e := model.NormalizedEvent{
		ID:              uuid.NewString(),
		Timestamp:       now,
		AgentID:         "000",
		AgentName:       "unknown",
		RuleID:          "0000",
		RuleDescription: "Unknown rule",
		RuleLevel:       model.DefaultRuleLevel,
		DecoderName:     "syslog",
		Location:        "syslog",
		ManagerName:     "wazuh-server",
		InputType:       "log",
		FullLog:         msg,
	}

	if m := ruleRe.FindStringSubmatch(msg); m != nil {
		e.RuleID = m[1]
	}
	if m := levelRe.FindStringSubmatch(msg); m != nil {
		if level, err := strconv.Atoi(m[1]); err == nil {
			e.RuleLevel = level
		}
	}
	if m := agentRe.FindStringSubmatch(msg); m != nil {
		e.AgentName = m[1]
	}
	if m := descriptionRe.FindStringSubmatch(msg); m != nil {
		e.RuleDescription = m[1]
	}

	return e
}
