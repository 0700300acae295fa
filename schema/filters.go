package schema

import (
	"encoding/json"
	"errors"

	"hermannm.dev/wrap"
)

// A single typed constraint on a property of the filtered subject.
type PropertyFilter struct {
	Key      string             `json:"key"`
	Type     PropertyFilterType `json:"type"`
	Operator PropertyOperator   `json:"operator,omitempty"`
	// JSON-compatible value: string, number, bool, nil or a list of those.
	Value any `json:"value"`
}

func (filter PropertyFilter) Validate() error {
	if filter.Key == "" {
		return errors.New("property filter key is blank")
	}
	if !filter.Type.IsValid() {
		return errors.New("invalid property filter type")
	}
	// HogQL filters are raw expressions carried in the key, with no operator.
	if filter.Type != PropertyFilterTypeHogQL && !filter.Operator.IsValid() {
		return errors.New("invalid property filter operator")
	}
	return nil
}

// A constraint that a given event (optionally with property constraints of its own)
// occurred within the filtered time range.
type EventFilter struct {
	ID         string           `json:"id"`
	Name       string           `json:"name,omitempty"`
	Type       string           `json:"type,omitempty"`
	Properties []PropertyFilter `json:"properties,omitempty"`
}

func (filter EventFilter) Validate() error {
	if filter.ID == "" {
		return errors.New("event filter ID is blank")
	}
	for _, property := range filter.Properties {
		if err := property.Validate(); err != nil {
			return wrap.Errorf(err, "invalid property on event filter '%s'", filter.ID)
		}
	}
	return nil
}

// Like EventFilter, but referencing a saved action by its numeric ID.
type ActionFilter struct {
	ID         json.Number      `json:"id"`
	Name       string           `json:"name,omitempty"`
	Type       string           `json:"type,omitempty"`
	Properties []PropertyFilter `json:"properties,omitempty"`
}

func (filter ActionFilter) Validate() error {
	if filter.ID == "" {
		return errors.New("action filter ID is blank")
	}
	for _, property := range filter.Properties {
		if err := property.Validate(); err != nil {
			return wrap.Errorf(err, "invalid property on action filter '%s'", filter.ID)
		}
	}
	return nil
}

// Decodes a raw JSON-compatible map into the given typed filter, failing on unknown enum
// values rather than silently dropping data.
func DecodeFilter[T any](rawFilter map[string]any, target *T) error {
	bytes, err := json.Marshal(rawFilter)
	if err != nil {
		return wrap.Error(err, "failed to serialize raw filter")
	}
	if err := json.Unmarshal(bytes, target); err != nil {
		return wrap.Error(err, "raw filter did not match expected shape")
	}
	return nil
}
