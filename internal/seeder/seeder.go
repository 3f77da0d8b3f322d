// Package seeder generates plausible security events for demos and local
// development, so the dashboard has data before a real indexer is wired up.
package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/soclens/soclens/internal/logging"
	"github.com/soclens/soclens/internal/model"
	"github.com/soclens/soclens/internal/store"
)

var ruleCatalog = []struct {
	id          string
	description string
	level       int
	groups      []string
}{
	{"5710", "sshd: Attempt to login using a non-existent user", 5, []string{"syslog", "sshd", "authentication_failed"}},
	{"5712", "sshd: brute force trying to get access to the system", 10, []string{"syslog", "sshd", "authentication_failures"}},
	{"5501", "PAM: Login session opened", 3, []string{"pam", "syslog", "authentication_success"}},
	{"5502", "PAM: Login session closed", 3, []string{"pam", "syslog"}},
	{"31101", "Web server 400 error code", 5, []string{"web", "accesslog"}},
	{"31151", "Multiple web server 400 error codes from same source ip", 10, []string{"web", "accesslog", "web_scan"}},
	{"554", "File added to the system", 7, []string{"ossec", "syscheck"}},
	{"550", "Integrity checksum changed", 7, []string{"ossec", "syscheck"}},
	{"2902", "New dpkg (Debian Package) installed", 7, []string{"syslog", "dpkg", "config_changed"}},
	{"100002", "Possible privilege escalation attempt detected", 12, []string{"local", "audit", "privilege_escalation"}},
}

// Seeder writes generated events into the document store.
type Seeder struct {
	store *store.PostgresStore
	log   *logging.Logger
}

// New constructs a Seeder.
func New(s *store.PostgresStore, log *logging.Logger) *Seeder {
	return &Seeder{store: s, log: log}
}

// Seed inserts count generated events spread over the past 24 hours across
// agentCount fake endpoints.
func (s *Seeder) Seed(ctx context.Context, count, agentCount int) error {
	if agentCount <= 0 {
		agentCount = 5
	}

	type agent struct {
		id   string
		name string
		ip   string
	}
	agents := make([]agent, agentCount)
	for i := range agents {
		agents[i] = agent{
			id:   fmt.Sprintf("AGT-%03d", i+1),
			name: gofakeit.AppName(),
			ip:   gofakeit.IPv4Address(),
		}
	}

	now := time.Now().UTC()
	events := make([]model.NormalizedEvent, 0, count)
	for i := 0; i < count; i++ {
		rule := ruleCatalog[gofakeit.Number(0, len(ruleCatalog)-1)]
		a := agents[gofakeit.Number(0, len(agents)-1)]
		ts := now.Add(-time.Duration(gofakeit.Number(0, 24*60*60)) * time.Second)

		events = append(events, model.NormalizedEvent{
			ID:              gofakeit.UUID(),
			Timestamp:       ts,
			AgentID:         a.id,
			AgentName:       a.name,
			AgentIP:         a.ip,
			RuleID:          rule.id,
			RuleDescription: rule.description,
			RuleLevel:       rule.level,
			RuleGroups:      rule.groups,
			DecoderName:     "wazuh",
			Location:        gofakeit.RandomString([]string{"/var/log/auth.log", "/var/log/syslog", "/var/log/nginx/access.log"}),
			ManagerName:     "wazuh-server",
			InputType:       "log",
			FullLog:         fmt.Sprintf("%s %s: %s", ts.Format(time.Stamp), a.name, rule.description),
		})
	}

	if err := s.store.InsertEvents(ctx, events); err != nil {
		return fmt.Errorf("failed to seed events: %w", err)
	}
	s.log.Info("seeded events", "count", len(events), "agents", agentCount)
	return nil
}
