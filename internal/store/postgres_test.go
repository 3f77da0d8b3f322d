package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildListQuery_NoFilters(t *testing.T) {
	query, args := buildListQuery(EventFilter{})

	assert.NotContains(t, query, "rule_level >=")
	assert.NotContains(t, query, "agent_id =")
	assert.Contains(t, query, "ORDER BY ts DESC LIMIT $1 OFFSET $2")
	// Default page size applies when none is given.
	assert.Equal(t, []interface{}{100, 0}, args)
}

func TestBuildListQuery_SeverityFilter(t *testing.T) {
	query, args := buildListQuery(EventFilter{MinLevel: 8, Limit: 25})

	assert.Contains(t, query, "rule_level >= $1")
	assert.Contains(t, query, "LIMIT $2 OFFSET $3")
	assert.Equal(t, []interface{}{8, 25, 0}, args)
}

func TestBuildListQuery_AllFilters(t *testing.T) {
	query, args := buildListQuery(EventFilter{
		MinLevel: 10,
		AgentID:  "AGT-001",
		Limit:    50,
		Offset:   100,
	})

	assert.Contains(t, query, "rule_level >= $1")
	assert.Contains(t, query, "agent_id = $2")
	assert.Contains(t, query, "LIMIT $3 OFFSET $4")
	require.Len(t, args, 4)
	assert.Equal(t, []interface{}{10, "AGT-001", 50, 100}, args)
}

func TestBuildListQuery_AgentFilterOnly(t *testing.T) {
	query, args := buildListQuery(EventFilter{AgentID: "AGT-007"})

	assert.NotContains(t, query, "rule_level >=")
	assert.Contains(t, query, "agent_id = $1")
	assert.Equal(t, []interface{}{"AGT-007", 100, 0}, args)
}
