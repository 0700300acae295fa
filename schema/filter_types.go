package schema

import (
	"hermannm.dev/enumnames"
)

// The subject a property filter applies to. Determines which query shapes the filter is
// compatible with: data_warehouse filters only apply to warehouse-table queries, event
// filters only to event-table queries, and so on.
type PropertyFilterType uint8

const (
	PropertyFilterTypeEvent         PropertyFilterType = 1
	PropertyFilterTypePerson        PropertyFilterType = 2
	PropertyFilterTypeElement       PropertyFilterType = 3
	PropertyFilterTypeSession       PropertyFilterType = 4
	PropertyFilterTypeRecording     PropertyFilterType = 5
	PropertyFilterTypeLogEntry      PropertyFilterType = 6
	PropertyFilterTypeHogQL         PropertyFilterType = 7
	PropertyFilterTypeDataWarehouse PropertyFilterType = 8
)

var propertyFilterTypeNames = enumnames.NewMap(map[PropertyFilterType]string{
	PropertyFilterTypeEvent:         "event",
	PropertyFilterTypePerson:        "person",
	PropertyFilterTypeElement:       "element",
	PropertyFilterTypeSession:       "session",
	PropertyFilterTypeRecording:     "recording",
	PropertyFilterTypeLogEntry:      "log_entry",
	PropertyFilterTypeHogQL:         "hogql",
	PropertyFilterTypeDataWarehouse: "data_warehouse",
})

func (filterType PropertyFilterType) IsValid() bool {
	return propertyFilterTypeNames.ContainsEnumValue(filterType)
}

func (filterType PropertyFilterType) String() string {
	return propertyFilterTypeNames.GetNameOrFallback(filterType, "[INVALID PROPERTY FILTER TYPE]")
}

func (filterType PropertyFilterType) MarshalJSON() ([]byte, error) {
	return propertyFilterTypeNames.MarshalToNameJSON(filterType)
}

func (filterType *PropertyFilterType) UnmarshalJSON(bytes []byte) error {
	return propertyFilterTypeNames.UnmarshalFromNameJSON(bytes, filterType)
}
