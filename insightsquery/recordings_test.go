package insightsquery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/insights/db"
	"hermannm.dev/insights/filters"
	"hermannm.dev/insights/schema"
)

func buildRecordingsSQL(t *testing.T, query schema.RecordingsQuery) string {
	t.Helper()

	builtQuery, err := BuildRecordingsQuery(
		query,
		nil,
		time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, time.June, 4, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	sql, err := db.PrintSQL(builtQuery)
	require.NoError(t, err)
	return sql
}

func TestRecordingsQueryShape(t *testing.T) {
	sql := buildRecordingsSQL(t, schema.RecordingsQuery{
		Operand: schema.FilterLogicalOperatorAnd,
	})

	assert.Contains(t, sql, "SELECT `session_id`")
	assert.Contains(t, sql, "min(`min_first_timestamp`) AS `start_time`")
	assert.Contains(t, sql, "divide(sum(`active_milliseconds`), 1000) AS `active_seconds`")
	assert.Contains(t, sql, "FROM `session_replay_events`")
	assert.Contains(t, sql, "`min_first_timestamp` >= toDateTime('2023-06-01 00:00:00')")
	assert.Contains(t, sql, "GROUP BY `session_id`")
	assert.Contains(t, sql, "ORDER BY `start_time` DESC")
}

func TestRecordingsEventFilterBecomesSubquery(t *testing.T) {
	sql := buildRecordingsSQL(t, schema.RecordingsQuery{
		Operand: schema.FilterLogicalOperatorAnd,
		Events: []schema.EventFilter{
			{
				ID:   "$pageview",
				Name: "$pageview",
				Properties: []schema.PropertyFilter{
					{
						Type:     schema.PropertyFilterTypeEvent,
						Key:      "$current_url",
						Value:    "/pricing",
						Operator: schema.PropertyOperatorExact,
					},
				},
			},
		},
	})

	assert.Contains(t, sql, "`session_id` IN (SELECT JSONExtractString(`properties`, '$session_id') FROM `events`")
	assert.Contains(t, sql, "`event` = '$pageview'")
	assert.Contains(t, sql, "JSONExtractString(`properties`, '$current_url') = '/pricing'")
}

func TestRecordingsConsoleLogFilterQueriesLogEntries(t *testing.T) {
	sql := buildRecordingsSQL(t, schema.RecordingsQuery{
		Operand: schema.FilterLogicalOperatorAnd,
		ConsoleLogFilters: []schema.PropertyFilter{
			{
				Type:     schema.PropertyFilterTypeLogEntry,
				Key:      "level",
				Value:    []any{"error", "warn"},
				Operator: schema.PropertyOperatorExact,
			},
		},
	})

	assert.Contains(t, sql, "`session_id` IN (SELECT `log_source_id` FROM `log_entries`")
	assert.Contains(t, sql, "`level` IN ('error', 'warn')")
}

func TestRecordingsHavingPredicates(t *testing.T) {
	sql := buildRecordingsSQL(t, schema.RecordingsQuery{
		Operand: schema.FilterLogicalOperatorAnd,
		HavingPredicates: []schema.PropertyFilter{
			{
				Type:     schema.PropertyFilterTypeRecording,
				Key:      "active_seconds",
				Value:    float64(5),
				Operator: schema.PropertyOperatorGreaterThan,
			},
			{
				Type:     schema.PropertyFilterTypeRecording,
				Key:      "snapshot_source",
				Value:    []any{"mobile"},
				Operator: schema.PropertyOperatorExact,
			},
		},
	})

	assert.Contains(t, sql, "HAVING (`active_seconds` > 5 AND `snapshot_source` IN ('mobile'))")
	// snapshot_source is only selectable when a predicate needs it.
	assert.Contains(t, sql, "any(`snapshot_source`) AS `snapshot_source`")
}

func TestRecordingsHavingPredicatesConjoinedUnderOr(t *testing.T) {
	sql := buildRecordingsSQL(t, schema.RecordingsQuery{
		Operand: schema.FilterLogicalOperatorOr,
		Events: []schema.EventFilter{
			{ID: "$pageview", Name: "$pageview"},
			{ID: "$autocapture", Name: "$autocapture"},
		},
		HavingPredicates: []schema.PropertyFilter{
			{
				Type:     schema.PropertyFilterTypeRecording,
				Key:      "active_seconds",
				Value:    float64(5),
				Operator: schema.PropertyOperatorGreaterThan,
			},
			{
				Type:     schema.PropertyFilterTypeRecording,
				Key:      "snapshot_source",
				Value:    []any{"mobile"},
				Operator: schema.PropertyOperatorExact,
			},
		},
	})

	// The filter conditions are OR'd, but the duration threshold and snapshot source
	// must still both hold.
	assert.Contains(t, sql, ") OR `session_id` IN (")
	assert.Contains(t, sql, "HAVING (`active_seconds` > 5 AND `snapshot_source` IN ('mobile'))")
}

func TestRecordingsOperandOr(t *testing.T) {
	sql := buildRecordingsSQL(t, schema.RecordingsQuery{
		Operand: schema.FilterLogicalOperatorOr,
		Events: []schema.EventFilter{
			{ID: "$pageview", Name: "$pageview"},
			{ID: "$autocapture", Name: "$autocapture"},
		},
	})

	assert.Contains(t, sql, ") OR `session_id` IN (")
}

func TestRecordingsEmptyValueListNeverMatches(t *testing.T) {
	// A snapshot_source filter with an empty value list is stored as a generic property
	// filter by translation; it must not produce an IN () clause.
	query, err := filters.ToRecordingsQuery(map[string]any{
		"filter_group": map[string]any{
			"type": "AND",
			"values": []any{
				map[string]any{
					"type": "AND",
					"values": []any{
						map[string]any{
							"type":     "recording",
							"key":      "snapshot_source",
							"value":    []any{},
							"operator": "exact",
						},
					},
				},
			},
		},
	})
	require.NoError(t, err)

	sql := buildRecordingsSQL(t, query)
	assert.NotContains(t, sql, "IN ()")
	assert.Contains(t, sql, "false")
}

func TestRecordingsEmptyExclusionListKeepsAllRows(t *testing.T) {
	sql := buildRecordingsSQL(t, schema.RecordingsQuery{
		Operand: schema.FilterLogicalOperatorAnd,
		Properties: []schema.PropertyFilter{
			{
				Type:     schema.PropertyFilterTypeEvent,
				Key:      "$browser",
				Value:    []any{},
				Operator: schema.PropertyOperatorNotIn,
			},
		},
	})

	assert.NotContains(t, sql, "NOT IN ()")
	assert.Contains(t, sql, "true")
}

func TestRecordingsInvalidOrderField(t *testing.T) {
	_, err := BuildRecordingsQuery(
		schema.RecordingsQuery{
			Operand: schema.FilterLogicalOperatorAnd,
			Order:   "start_time; DROP TABLE events",
		},
		nil,
		time.Now().Add(-72*time.Hour),
		time.Now(),
	)
	require.Error(t, err)
}

func TestRunRecordingsQueryCollectsSessionIDs(t *testing.T) {
	executor := &fakeExecutor{
		result: db.PagedResult{
			Columns: []string{"session_id", "start_time"},
			Results: [][]any{
				{"session-1", trendsDate(1)},
				{"session-2", trendsDate(2)},
			},
			HasMore: true,
		},
	}

	response, err := RunRecordingsQuery(
		context.Background(),
		executor,
		schema.RecordingsQuery{Operand: schema.FilterLogicalOperatorAnd, Limit: 2},
		nil,
		time.Date(2023, time.June, 4, 12, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	require.Len(t, executor.executed, 1)
	assert.Equal(t, "session_recordings_query", executor.executed[0].queryType)
	assert.Equal(t, 2, executor.executed[0].limit)
	// Default date window is the last 3 days.
	assert.Contains(
		t,
		executor.executed[0].sql,
		"`min_first_timestamp` >= toDateTime('2023-06-01 12:00:00')",
	)

	assert.Equal(t, []string{"session-1", "session-2"}, response.SessionIDs)
	assert.True(t, response.HasMore)
}
