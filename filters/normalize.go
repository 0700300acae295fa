// Package filters converts stored session-replay filter documents, in both the legacy
// flat shape and the current universal (grouped) shape, into typed recordings queries.
package filters

// Stored filters get a filter_group once they are in the universal shape; legacy
// filters never have one.
const filterGroupKey = "filter_group"

// DefaultRecordingFilters returns the filter document applied when a user has not
// chosen any filters. Saved filters equal to this set are "not real filters" and are
// skipped by the recomputation task.
func DefaultRecordingFilters() map[string]any {
	return map[string]any{
		"date_from":            "-3d",
		"date_to":              nil,
		"filter_test_accounts": false,
		"duration": []any{
			map[string]any{
				"type":     "recording",
				"key":      "active_seconds",
				"value":    float64(5),
				"operator": "gt",
			},
		},
		"order": "start_time",
	}
}

// IsLegacy reports whether the given stored filters are in the legacy flat shape and
// would be rewritten by Normalize. Callers use this to decide whether to persist the
// normalized form back to storage.
func IsLegacy(rawFilters map[string]any) bool {
	if len(rawFilters) == 0 {
		return false
	}
	_, hasFilterGroup := rawFilters[filterGroupKey]
	return !hasFilterGroup
}

// Normalize converts a legacy filter document to the universal shape: a single
// top-level AND group wrapping one inner AND group that holds all leaf filters.
//
// Empty input returns an empty document (callers must treat this as "use defaults").
// Documents already in the universal shape are returned as-is. Normalize is pure: it
// never mutates its input, and persisting the normalized form is a separate step.
func Normalize(rawFilters map[string]any) map[string]any {
	if len(rawFilters) == 0 {
		return map[string]any{}
	}
	if !IsLegacy(rawFilters) {
		return rawFilters
	}

	defaults := DefaultRecordingFilters()

	leafFilters := make([]any, 0)
	leafFilters = append(leafFilters, listValue(rawFilters, "events")...)
	leafFilters = append(leafFilters, listValue(rawFilters, "actions")...)
	leafFilters = append(leafFilters, listValue(rawFilters, "properties")...)

	if consoleLogs, ok := nonEmptyValue(rawFilters, "console_logs"); ok {
		leafFilters = append(leafFilters, map[string]any{
			"key":      "level",
			"value":    consoleLogs,
			"operator": "exact",
			"type":     "log_entry",
		})
	}

	if searchQuery, ok := nonEmptyValue(rawFilters, "console_search_query"); ok {
		leafFilters = append(leafFilters, map[string]any{
			"key":      "message",
			"value":    []any{searchQuery},
			"operator": "exact",
			"type":     "log_entry",
		})
	}

	duration := make([]any, 0, 1)
	if legacyDuration, ok := rawFilters["session_recording_duration"].(map[string]any); ok {
		durationFilter := make(map[string]any, len(legacyDuration)+1)
		for key, value := range legacyDuration {
			durationFilter[key] = value
		}

		durationKey := "active_seconds"
		if existingKey, ok := nonEmptyValue(legacyDuration, "key"); ok {
			durationKey = existingKey.(string)
		}
		if typeFilter, ok := nonEmptyValue(rawFilters, "duration_type_filter"); ok {
			durationKey = typeFilter.(string)
		}
		durationFilter["key"] = durationKey

		duration = append(duration, durationFilter)
	}
	if len(duration) == 0 {
		duration = defaults["duration"].([]any)
	}

	normalized := map[string]any{
		"date_from":            defaults["date_from"],
		"date_to":              defaults["date_to"],
		"filter_test_accounts": defaults["filter_test_accounts"],
		"duration":             duration,
		filterGroupKey: map[string]any{
			"type": "AND",
			"values": []any{
				map[string]any{"type": "AND", "values": leafFilters},
			},
		},
		"order": defaults["order"],
	}

	if dateFrom, ok := nonEmptyValue(rawFilters, "date_from"); ok {
		normalized["date_from"] = dateFrom
	}
	if dateTo, ok := nonEmptyValue(rawFilters, "date_to"); ok {
		normalized["date_to"] = dateTo
	}
	if filterTestAccounts, ok := rawFilters["filter_test_accounts"].(bool); ok {
		normalized["filter_test_accounts"] = filterTestAccounts
	}

	return normalized
}

func listValue(document map[string]any, key string) []any {
	if list, ok := document[key].([]any); ok {
		return list
	}
	return nil
}

// nonEmptyValue returns the value for the given key, treating nil, blank strings and
// empty lists as absent (matching how the legacy frontend serialized unset filters).
func nonEmptyValue(document map[string]any, key string) (any, bool) {
	value, ok := document[key]
	if !ok || value == nil {
		return nil, false
	}
	switch value := value.(type) {
	case string:
		if value == "" {
			return nil, false
		}
	case []any:
		if len(value) == 0 {
			return nil, false
		}
	}
	return value, true
}
