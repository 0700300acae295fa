package filters

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"hermannm.dev/devlog/log"
	"hermannm.dev/insights/schema"
	"hermannm.dev/wrap"
)

// Scalar keys that older clients stored alongside the filters, which are not part of
// the query schema and must be stripped before translation.
var nonQueryKeys = []string{"version", "hogql_filtering"}

// TranslationError is returned when a filter document cannot be translated to a
// recordings query. It captures the full raw document and the partial decomposition,
// so that failures can be diagnosed without reproducing the stored state.
type TranslationError struct {
	Message  string
	Document map[string]any
	Partial  PartialTranslation
	Cause    error
}

// The intermediate lists built up during translation, attached to TranslationError for
// diagnosability.
type PartialTranslation struct {
	Properties        []schema.PropertyFilter
	Events            []schema.EventFilter
	Actions           []schema.ActionFilter
	ConsoleLogFilters []schema.PropertyFilter
	HavingPredicates  []schema.PropertyFilter
}

func (err *TranslationError) Error() string {
	if err.Cause != nil {
		return fmt.Sprintf("%s: %v", err.Message, err.Cause)
	}
	return err.Message
}

func (err *TranslationError) Unwrap() error {
	return err.Cause
}

// ToRecordingsQuery translates a universal filter document into a typed recordings
// query. The document must already be normalized (see Normalize); an empty document
// yields the default query. Translation fails loudly with a *TranslationError if the
// document lacks a recognizable group structure or a filter fails shape validation;
// data is never silently dropped.
func ToRecordingsQuery(document map[string]any) (schema.RecordingsQuery, error) {
	if len(document) == 0 {
		return ToRecordingsQuery(Normalize(DefaultRecordingFilters()))
	}

	document = withoutNonQueryKeys(document)

	leaves, operand, err := extractFilterGroup(document)
	if err != nil {
		return schema.RecordingsQuery{}, &TranslationError{
			Message:  "invalid universal filters",
			Document: document,
			Cause:    err,
		}
	}

	var partial PartialTranslation

	if duration, ok := document["duration"].([]any); ok && len(duration) > 0 {
		// Only the first duration entry applies; the filter UI never produces more.
		durationFilter, err := decodeDurationFilter(duration[0])
		if err != nil {
			return schema.RecordingsQuery{}, translationFailure(document, partial, err)
		}
		partial.HavingPredicates = append(partial.HavingPredicates, durationFilter)
	}

	for _, leaf := range leaves {
		if err := dispatchLeafFilter(leaf, &partial); err != nil {
			return schema.RecordingsQuery{}, translationFailure(document, partial, err)
		}
	}

	query := schema.RecordingsQuery{
		DateFrom:           optionalString(document, "date_from"),
		DateTo:             optionalString(document, "date_to"),
		FilterTestAccounts: document["filter_test_accounts"] == true,
		Properties:         partial.Properties,
		Events:             partial.Events,
		Actions:            partial.Actions,
		ConsoleLogFilters:  partial.ConsoleLogFilters,
		HavingPredicates:   partial.HavingPredicates,
		Operand:            operand,
	}
	if order, ok := document["order"].(string); ok {
		query.Order = order
	}

	if err := query.Validate(); err != nil {
		return schema.RecordingsQuery{}, translationFailure(document, partial, err)
	}

	return query, nil
}

// Validation failures here were historically hard to debug, so we log the complete
// partial decomposition alongside the raw document before returning.
func translationFailure(
	document map[string]any,
	partial PartialTranslation,
	cause error,
) *TranslationError {
	err := &TranslationError{
		Message:  "failed to translate universal filters to recordings query",
		Document: document,
		Partial:  partial,
		Cause:    cause,
	}
	log.ErrorCause(
		cause,
		err.Message,
		slog.Any("filters", document),
		slog.Any("properties", partial.Properties),
		slog.Any("events", partial.Events),
		slog.Any("actions", partial.Actions),
		slog.Any("consoleLogFilters", partial.ConsoleLogFilters),
		slog.Any("havingPredicates", partial.HavingPredicates),
	)
	return err
}

func withoutNonQueryKeys(document map[string]any) map[string]any {
	stripped := make(map[string]any, len(document))
	for key, value := range document {
		stripped[key] = value
	}
	for _, key := range nonQueryKeys {
		delete(stripped, key)
	}
	return stripped
}

// extractFilterGroup walks the two-level group structure produced by Normalize: an
// outer group with exactly one inner group holding all leaf filters.
func extractFilterGroup(
	document map[string]any,
) (leaves []any, operand schema.FilterLogicalOperator, err error) {
	operand = schema.FilterLogicalOperatorAnd

	filterGroup, ok := document[filterGroupKey].(map[string]any)
	if !ok {
		return nil, 0, fmt.Errorf("document has no '%s' group", filterGroupKey)
	}

	if operandName, ok := filterGroup["type"].(string); ok {
		if err := json.Unmarshal([]byte(strconv.Quote(operandName)), &operand); err != nil {
			return nil, 0, wrap.Errorf(err, "invalid filter group operator '%s'", operandName)
		}
	}

	groups, ok := filterGroup["values"].([]any)
	if !ok || len(groups) == 0 {
		return nil, 0, fmt.Errorf("'%s' group has no values", filterGroupKey)
	}

	innerGroup, ok := groups[0].(map[string]any)
	if !ok {
		return nil, 0, fmt.Errorf("inner group of '%s' is not a group", filterGroupKey)
	}

	// A missing inner values list is tolerated as zero leaf filters, since some stored
	// documents omit it entirely.
	innerValues, _ := innerGroup["values"].([]any)

	return innerValues, operand, nil
}

// dispatchLeafFilter routes a single leaf filter to the matching list on the partial
// translation, keyed by its declared type. Unrecognized types fall back to the generic
// property filter bucket rather than failing, for forward compatibility.
func dispatchLeafFilter(leaf any, partial *PartialTranslation) error {
	leafMap, ok := leaf.(map[string]any)
	if !ok {
		return fmt.Errorf("leaf filter '%v' is not an object", leaf)
	}
	leafType, _ := leafMap["type"].(string)

	switch leafType {
	case "events":
		var event schema.EventFilter
		if err := schema.DecodeFilter(leafMap, &event); err != nil {
			return wrap.Error(err, "invalid event filter")
		}
		partial.Events = append(partial.Events, event)

	case "actions":
		var action schema.ActionFilter
		if err := schema.DecodeFilter(leafMap, &action); err != nil {
			return wrap.Error(err, "invalid action filter")
		}
		partial.Actions = append(partial.Actions, action)

	case "log_entry":
		consoleLogFilter, err := decodePropertyFilter(leafMap)
		if err != nil {
			return wrap.Error(err, "invalid console log filter")
		}
		partial.ConsoleLogFilters = append(partial.ConsoleLogFilters, consoleLogFilter)

	case "hogql":
		// Raw expression escape hatch; carried as a property filter.
		hogqlFilter, err := decodePropertyFilter(leafMap)
		if err != nil {
			return wrap.Error(err, "invalid hogql filter")
		}
		partial.Properties = append(partial.Properties, hogqlFilter)

	case "recording":
		return dispatchRecordingFilter(leafMap, partial)

	default:
		propertyFilter, err := decodePropertyFilter(leafMap)
		if err != nil {
			return wrap.Errorf(err, "invalid property filter of type '%s'", leafType)
		}
		partial.Properties = append(partial.Properties, propertyFilter)
	}

	return nil
}

func dispatchRecordingFilter(leafMap map[string]any, partial *PartialTranslation) error {
	key, _ := leafMap["key"].(string)

	switch {
	case key == "visited_page":
		// "Visited page" is a UX-level alias for an event-based constraint on
		// $current_url, not a recording-level column.
		operatorName, _ := leafMap["operator"].(string)
		var operator schema.PropertyOperator
		if err := json.Unmarshal([]byte(strconv.Quote(operatorName)), &operator); err != nil {
			return wrap.Errorf(err, "invalid operator '%s' on visited_page filter", operatorName)
		}
		partial.Events = append(partial.Events, schema.EventFilter{
			ID:   "$pageview",
			Name: "$pageview",
			Type: "events",
			Properties: []schema.PropertyFilter{
				{
					Type:     schema.PropertyFilterTypeEvent,
					Key:      "$current_url",
					Value:    leafMap["value"],
					Operator: operator,
				},
			},
		})

	case key == "snapshot_source" && hasNonEmptyFilterValue(leafMap):
		// Snapshot source is a post-materialization filter, applied after row
		// construction rather than as a pre-filter.
		havingPredicate, err := decodePropertyFilter(leafMap)
		if err != nil {
			return wrap.Error(err, "invalid snapshot_source filter")
		}
		partial.HavingPredicates = append(partial.HavingPredicates, havingPredicate)

	default:
		recordingFilter, err := decodePropertyFilter(leafMap)
		if err != nil {
			return wrap.Error(err, "invalid recording filter")
		}
		partial.Properties = append(partial.Properties, recordingFilter)
	}

	return nil
}

func decodePropertyFilter(leafMap map[string]any) (schema.PropertyFilter, error) {
	var filter schema.PropertyFilter
	if err := schema.DecodeFilter(leafMap, &filter); err != nil {
		// Unknown filter types route to the generic (event) property bucket instead of
		// failing, so that filters saved by newer clients keep translating.
		leniency := make(map[string]any, len(leafMap))
		for key, value := range leafMap {
			leniency[key] = value
		}
		leniency["type"] = "event"

		if retryErr := schema.DecodeFilter(leniency, &filter); retryErr != nil {
			return schema.PropertyFilter{}, err
		}
		log.Warnf(
			"unrecognized filter type '%v' routed to generic property filter",
			leafMap["type"],
		)
	}
	return filter, nil
}

func decodeDurationFilter(rawDuration any) (schema.PropertyFilter, error) {
	durationMap, ok := rawDuration.(map[string]any)
	if !ok {
		return schema.PropertyFilter{}, fmt.Errorf(
			"duration filter '%v' is not an object",
			rawDuration,
		)
	}

	durationFilter, err := decodePropertyFilter(durationMap)
	if err != nil {
		return schema.PropertyFilter{}, wrap.Error(err, "invalid duration filter")
	}
	if !durationFilter.Type.IsValid() {
		durationFilter.Type = schema.PropertyFilterTypeRecording
	}
	return durationFilter, nil
}

func hasNonEmptyFilterValue(leafMap map[string]any) bool {
	_, ok := nonEmptyValue(leafMap, "value")
	return ok
}

func optionalString(document map[string]any, key string) *string {
	if value, ok := document[key].(string); ok && value != "" {
		return &value
	}
	return nil
}
