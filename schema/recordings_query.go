package schema

import (
	"fmt"

	"hermannm.dev/wrap"
)

// A validated, flat query for session recordings matching a set of filters. The JSON
// field names are the wire contract with the presentation layer and must not change.
type RecordingsQuery struct {
	DateFrom           *string               `json:"date_from,omitempty"`
	DateTo             *string               `json:"date_to,omitempty"`
	FilterTestAccounts bool                  `json:"filter_test_accounts"`
	Properties         []PropertyFilter      `json:"properties,omitempty"`
	Events             []EventFilter         `json:"events,omitempty"`
	Actions            []ActionFilter        `json:"actions,omitempty"`
	ConsoleLogFilters  []PropertyFilter      `json:"console_log_filters,omitempty"`
	HavingPredicates   []PropertyFilter      `json:"having_predicates,omitempty"`
	Operand            FilterLogicalOperator `json:"operand"`
	Order              string                `json:"order,omitempty"`
	Limit              int                   `json:"limit,omitempty"`
}

func (query RecordingsQuery) Validate() error {
	if !query.Operand.IsValid() {
		return fmt.Errorf("invalid operand '%v' in recordings query", query.Operand)
	}

	for _, property := range query.Properties {
		if err := property.Validate(); err != nil {
			return wrap.Error(err, "invalid property filter in recordings query")
		}
	}
	for _, event := range query.Events {
		if err := event.Validate(); err != nil {
			return wrap.Error(err, "invalid event filter in recordings query")
		}
	}
	for _, action := range query.Actions {
		if err := action.Validate(); err != nil {
			return wrap.Error(err, "invalid action filter in recordings query")
		}
	}
	for _, consoleLogFilter := range query.ConsoleLogFilters {
		if err := consoleLogFilter.Validate(); err != nil {
			return wrap.Error(err, "invalid console log filter in recordings query")
		}
		if consoleLogFilter.Type != PropertyFilterTypeLogEntry {
			return fmt.Errorf(
				"console log filter '%s' must have type %s",
				consoleLogFilter.Key,
				PropertyFilterTypeLogEntry,
			)
		}
	}
	for _, havingPredicate := range query.HavingPredicates {
		if err := havingPredicate.Validate(); err != nil {
			return wrap.Error(err, "invalid having predicate in recordings query")
		}
	}

	return nil
}
