package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmptyFilters(t *testing.T) {
	normalized := Normalize(map[string]any{})
	assert.Empty(t, normalized)
}

func TestNormalizeUniversalFiltersIsNoOp(t *testing.T) {
	universal := map[string]any{
		"date_from": "-3d",
		"filter_group": map[string]any{
			"type": "AND",
			"values": []any{
				map[string]any{"type": "AND", "values": []any{}},
			},
		},
	}

	assert.Equal(t, universal, Normalize(universal))
}

func TestNormalizeLegacyFilters(t *testing.T) {
	legacy := map[string]any{
		"events": []any{
			map[string]any{"id": "$pageview", "name": "$pageview", "type": "events"},
		},
		"actions": []any{
			map[string]any{"id": float64(1), "name": "Signed up", "type": "actions"},
		},
		"properties": []any{
			map[string]any{
				"key": "$browser", "value": []any{"Chrome"}, "operator": "exact", "type": "event",
			},
		},
		"console_logs":         []any{"error", "warn"},
		"console_search_query": "undefined is not a function",
		"session_recording_duration": map[string]any{
			"type": "recording", "key": "duration", "value": float64(60), "operator": "gt",
		},
		"duration_type_filter": "active_seconds",
		"date_from":            "-7d",
	}

	normalized := Normalize(legacy)

	filterGroup, ok := normalized["filter_group"].(map[string]any)
	require.True(t, ok, "normalized filters must have a filter_group")
	assert.Equal(t, "AND", filterGroup["type"])

	outerValues, ok := filterGroup["values"].([]any)
	require.True(t, ok)
	require.Len(t, outerValues, 1, "outer group must wrap exactly one inner group")

	innerGroup, ok := outerValues[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AND", innerGroup["type"])

	innerValues, ok := innerGroup["values"].([]any)
	require.True(t, ok)
	// 1 event + 1 action + 1 property + console level filter + console message filter.
	assert.Len(t, innerValues, 5)

	assert.Contains(t, innerValues, map[string]any{
		"key":      "level",
		"value":    []any{"error", "warn"},
		"operator": "exact",
		"type":     "log_entry",
	})
	assert.Contains(t, innerValues, map[string]any{
		"key":      "message",
		"value":    []any{"undefined is not a function"},
		"operator": "exact",
		"type":     "log_entry",
	})

	duration, ok := normalized["duration"].([]any)
	require.True(t, ok)
	require.Len(t, duration, 1)
	durationFilter, ok := duration[0].(map[string]any)
	require.True(t, ok)
	// duration_type_filter takes precedence over the legacy filter's own key.
	assert.Equal(t, "active_seconds", durationFilter["key"])
	assert.Equal(t, float64(60), durationFilter["value"])

	assert.Equal(t, "-7d", normalized["date_from"])
	assert.Equal(t, "start_time", normalized["order"])
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	normalized := Normalize(map[string]any{"events": []any{}})

	assert.Equal(t, "-3d", normalized["date_from"])
	assert.Nil(t, normalized["date_to"])
	assert.Equal(t, false, normalized["filter_test_accounts"])
	assert.Equal(t, "start_time", normalized["order"])
	assert.Equal(t, DefaultRecordingFilters()["duration"], normalized["duration"])
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	legacy := map[string]any{
		"events":       []any{},
		"console_logs": []any{"error"},
	}

	Normalize(legacy)

	assert.Equal(t, map[string]any{"events": []any{}, "console_logs": []any{"error"}}, legacy)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	legacy := map[string]any{
		"events": []any{
			map[string]any{"id": "$pageview", "name": "$pageview", "type": "events"},
		},
		"console_logs": []any{"error"},
	}

	normalized := Normalize(legacy)
	assert.Equal(t, normalized, Normalize(normalized))
}

func TestIsLegacy(t *testing.T) {
	assert.False(t, IsLegacy(map[string]any{}))
	assert.False(t, IsLegacy(map[string]any{"filter_group": map[string]any{}}))
	assert.True(t, IsLegacy(map[string]any{"events": []any{}}))
}
