package schema

import (
	"hermannm.dev/enumnames"
)

// Logical operator combining the filters in a filter group. Marshals to the same
// string values used by the frontend ("AND"/"OR"), which are part of the wire contract.
type FilterLogicalOperator uint8

const (
	FilterLogicalOperatorAnd FilterLogicalOperator = 1
	FilterLogicalOperatorOr  FilterLogicalOperator = 2
)

var filterLogicalOperatorNames = enumnames.NewMap(map[FilterLogicalOperator]string{
	FilterLogicalOperatorAnd: "AND",
	FilterLogicalOperatorOr:  "OR",
})

func (operator FilterLogicalOperator) IsValid() bool {
	return filterLogicalOperatorNames.ContainsEnumValue(operator)
}

func (operator FilterLogicalOperator) String() string {
	return filterLogicalOperatorNames.GetNameOrFallback(operator, "[INVALID LOGICAL OPERATOR]")
}

func (operator FilterLogicalOperator) MarshalJSON() ([]byte, error) {
	return filterLogicalOperatorNames.MarshalToNameJSON(operator)
}

func (operator *FilterLogicalOperator) UnmarshalJSON(bytes []byte) error {
	return filterLogicalOperatorNames.UnmarshalFromNameJSON(bytes, operator)
}

// Comparison operator on a single property filter. The names ("exact", "gt", etc.) are
// the wire contract with the presentation layer.
type PropertyOperator uint8

const (
	PropertyOperatorExact        PropertyOperator = 1
	PropertyOperatorIsNot        PropertyOperator = 2
	PropertyOperatorIContains    PropertyOperator = 3
	PropertyOperatorNotIContains PropertyOperator = 4
	PropertyOperatorRegex        PropertyOperator = 5
	PropertyOperatorNotRegex     PropertyOperator = 6
	PropertyOperatorGreaterThan  PropertyOperator = 7
	PropertyOperatorGreaterOrEq  PropertyOperator = 8
	PropertyOperatorLessThan     PropertyOperator = 9
	PropertyOperatorLessOrEq     PropertyOperator = 10
	PropertyOperatorIsSet        PropertyOperator = 11
	PropertyOperatorIsNotSet     PropertyOperator = 12
	PropertyOperatorIn           PropertyOperator = 13
	PropertyOperatorNotIn        PropertyOperator = 14
)

var propertyOperatorNames = enumnames.NewMap(map[PropertyOperator]string{
	PropertyOperatorExact:        "exact",
	PropertyOperatorIsNot:        "is_not",
	PropertyOperatorIContains:    "icontains",
	PropertyOperatorNotIContains: "not_icontains",
	PropertyOperatorRegex:        "regex",
	PropertyOperatorNotRegex:     "not_regex",
	PropertyOperatorGreaterThan:  "gt",
	PropertyOperatorGreaterOrEq:  "gte",
	PropertyOperatorLessThan:     "lt",
	PropertyOperatorLessOrEq:     "lte",
	PropertyOperatorIsSet:        "is_set",
	PropertyOperatorIsNotSet:     "is_not_set",
	PropertyOperatorIn:           "in",
	PropertyOperatorNotIn:        "not_in",
})

func (operator PropertyOperator) IsValid() bool {
	return propertyOperatorNames.ContainsEnumValue(operator)
}

func (operator PropertyOperator) String() string {
	return propertyOperatorNames.GetNameOrFallback(operator, "[INVALID PROPERTY OPERATOR]")
}

func (operator PropertyOperator) MarshalJSON() ([]byte, error) {
	return propertyOperatorNames.MarshalToNameJSON(operator)
}

func (operator *PropertyOperator) UnmarshalJSON(bytes []byte) error {
	return propertyOperatorNames.UnmarshalFromNameJSON(bytes, operator)
}
