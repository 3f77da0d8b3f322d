// Package store mirrors accepted alerts into Postgres and serves the
// dashboard's historical queries: filtered event lists, headline stats,
// severity chart buckets and the per-agent overview.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/soclens/soclens/internal/model"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// PostgresStore implements the document store on Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// RunMigrations applies pending schema migrations. sourceURL is a
// golang-migrate source like "file://migrations".
func RunMigrations(sourceURL, connString string) error {
	m, err := migrate.New(sourceURL, connString)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// NewPostgresStore connects a pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// InsertEvents mirrors a batch of events. Already-present ids are left
// untouched, so re-inserting the same batch is a no-op.
func (s *PostgresStore) InsertEvents(ctx context.Context, events []model.NormalizedEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO events (
			id, ts, agent_id, agent_name, agent_ip,
			rule_id, rule_description, rule_level, rule_groups,
			decoder_name, location, manager_name, input_type, full_log
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	for _, e := range events {
		batch.Queue(query,
			e.ID, e.Timestamp, e.AgentID, e.AgentName, e.AgentIP,
			e.RuleID, e.RuleDescription, e.RuleLevel, e.RuleGroups,
			e.DecoderName, e.Location, e.ManagerName, e.InputType, e.FullLog,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}
	return nil
}

// EventFilter narrows ListEvents.
type EventFilter struct {
	Limit    int
	Offset   int
	MinLevel int
	AgentID  string
}

// buildListQuery assembles the filtered, paginated SELECT and its
// positional arguments.
func buildListQuery(filter EventFilter) (string, []interface{}) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}

	query := `
		SELECT id, ts, agent_id, agent_name, agent_ip,
		       rule_id, rule_description, rule_level, rule_groups,
		       decoder_name, location, manager_name, input_type, full_log
		FROM events
		WHERE 1=1
	`
	args := []interface{}{}
	argPos := 1

	if filter.MinLevel > 0 {
		query += fmt.Sprintf(" AND rule_level >= $%d", argPos)
		args = append(args, filter.MinLevel)
		argPos++
	}
	if filter.AgentID != "" {
		query += fmt.Sprintf(" AND agent_id = $%d", argPos)
		args = append(args, filter.AgentID)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	return query, args
}

// ListEvents returns events newest first, filtered and paginated.
func (s *PostgresStore) ListEvents(ctx context.Context, filter EventFilter) ([]model.NormalizedEvent, error) {
	query, args := buildListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []model.NormalizedEvent
	for rows.Next() {
		var e model.NormalizedEvent
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.AgentID, &e.AgentName, &e.AgentIP,
			&e.RuleID, &e.RuleDescription, &e.RuleLevel, &e.RuleGroups,
			&e.DecoderName, &e.Location, &e.ManagerName, &e.InputType, &e.FullLog,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Stats is the dashboard headline aggregation.
type Stats struct {
	TotalEvents  int64 `json:"totalEvents"`
	HighSeverity int64 `json:"highSeverity"`
	AgentCount   int64 `json:"agentCount"`
}

// EventStats aggregates totals across all mirrored events. High severity
// counts events at rule level 10 and above.
func (s *PostgresStore) EventStats(ctx context.Context) (Stats, error) {
	query := `
		SELECT count(*),
		       count(*) FILTER (WHERE rule_level >= 10),
		       count(DISTINCT agent_id)
		FROM events
	`
	var st Stats
	if err := s.pool.QueryRow(ctx, query).Scan(&st.TotalEvents, &st.HighSeverity, &st.AgentCount); err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate stats: %w", err)
	}
	return st, nil
}

// ChartBucket is one day of events bucketed into severity bands.
type ChartBucket struct {
	Date     string `json:"date"`
	Low      int64  `json:"low"`
	Medium   int64  `json:"medium"`
	High     int64  `json:"high"`
	Critical int64  `json:"critical"`
}

// EventsChart buckets events since the given instant by day and severity
// band: low <=3, medium <=7, high <=10, critical above.
func (s *PostgresStore) EventsChart(ctx context.Context, since time.Time) ([]ChartBucket, error) {
	query := `
		SELECT to_char(date_trunc('day', ts), 'YYYY-MM-DD') AS day,
		       count(*) FILTER (WHERE rule_level <= 3),
		       count(*) FILTER (WHERE rule_level > 3 AND rule_level <= 7),
		       count(*) FILTER (WHERE rule_level > 7 AND rule_level <= 10),
		       count(*) FILTER (WHERE rule_level > 10)
		FROM events
		WHERE ts >= $1
		GROUP BY day
		ORDER BY day
	`
	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query chart: %w", err)
	}
	defer rows.Close()

	buckets := []ChartBucket{}
	for rows.Next() {
		var b ChartBucket
		if err := rows.Scan(&b.Date, &b.Low, &b.Medium, &b.High, &b.Critical); err != nil {
			return nil, fmt.Errorf("failed to scan chart bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// AgentSummary is one agent's aggregate activity.
type AgentSummary struct {
	AgentID      string            `json:"agentId"`
	AgentIP      string            `json:"agentIp"`
	TotalEvents  int64             `json:"totalEvents"`
	HighSeverity int64             `json:"highSeverity"`
	AvgSeverity  float64           `json:"avgSeverity"`
	LastSeen     time.Time         `json:"lastSeen"`
	Status       model.AgentStatus `json:"status"`
}

// AgentOverview aggregates per-agent activity from mirrored events. High
// severity counts level 8 and above; an agent is online iff its newest
// event falls within offlineAfter of now.
func (s *PostgresStore) AgentOverview(ctx context.Context, offlineAfter time.Duration) ([]AgentSummary, error) {
	query := `
		SELECT agent_id,
		       max(agent_ip),
		       count(*),
		       count(*) FILTER (WHERE rule_level >= 8),
		       round(avg(rule_level)::numeric, 1),
		       max(ts)
		FROM events
		GROUP BY agent_id
		ORDER BY count(*) DESC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent overview: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	summaries := []AgentSummary{}
	for rows.Next() {
		var sum AgentSummary
		if err := rows.Scan(
			&sum.AgentID, &sum.AgentIP, &sum.TotalEvents,
			&sum.HighSeverity, &sum.AvgSeverity, &sum.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("failed to scan agent summary: %w", err)
		}
		sum.Status = model.AgentOffline
		if now.Sub(sum.LastSeen) <= offlineAfter {
			sum.Status = model.AgentOnline
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}
