package schema

import (
	"errors"
	"fmt"

	"hermannm.dev/wrap"
)

// An analytics query computing per-interval counts (or other aggregates) for one or
// more series. Series over data warehouse tables are the only kind handled by this
// service; event/action series are resolved by an upstream collaborator.
type TrendsQuery struct {
	DateRange          DateRange             `json:"dateRange"`
	Interval           string                `json:"interval,omitempty"`
	Series             []DataWarehouseSeries `json:"series"`
	Properties         []PropertyFilter      `json:"properties,omitempty"`
	FilterTestAccounts bool                  `json:"filterTestAccounts,omitempty"`
	Breakdown          *BreakdownFilter      `json:"breakdownFilter,omitempty"`
}

type DateRange struct {
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

// A series backed by an externally stored warehouse table or a saved view, plugged into
// the query engine as a first-class queryable source. Requires explicit field mappings,
// since warehouse tables have no common physical schema.
type DataWarehouseSeries struct {
	TableName       string `json:"table_name"`
	IDField         string `json:"id_field"`
	TimestampField  string `json:"timestamp_field"`
	DistinctIDField string `json:"distinct_id_field"`
	// Aggregation function ("avg", "p90", ...) applied to MathProperty instead of
	// counting rows. Empty means count.
	Math         string `json:"math,omitempty"`
	MathProperty string `json:"math_property,omitempty"`
	// Property filters restricted to the table's own property type (data_warehouse).
	Properties []PropertyFilter `json:"properties,omitempty"`
}

func (series DataWarehouseSeries) Validate() error {
	if series.TableName == "" {
		return errors.New("warehouse series is missing table name")
	}
	if series.IDField == "" || series.TimestampField == "" {
		return fmt.Errorf(
			"warehouse series for table '%s' is missing id/timestamp field mapping",
			series.TableName,
		)
	}
	for _, property := range series.Properties {
		if err := property.Validate(); err != nil {
			return wrap.Errorf(err, "invalid property on series for table '%s'", series.TableName)
		}
		if property.Type != PropertyFilterTypeDataWarehouse {
			return fmt.Errorf(
				"series for table '%s' can only carry %s properties, got %s",
				series.TableName,
				PropertyFilterTypeDataWarehouse,
				property.Type,
			)
		}
	}
	return nil
}

// The grouping dimension added to a trends query, producing one result series per
// distinct value. Dotted breakdowns ("events.properties.x") cross a declared join.
type BreakdownFilter struct {
	Breakdown     string `json:"breakdown"`
	BreakdownType string `json:"breakdown_type,omitempty"`
}

func (query TrendsQuery) Validate() error {
	for _, series := range query.Series {
		if err := series.Validate(); err != nil {
			return wrap.Error(err, "invalid series in trends query")
		}
	}
	for _, property := range query.Properties {
		if err := property.Validate(); err != nil {
			return wrap.Error(err, "invalid property filter in trends query")
		}
	}
	return nil
}
