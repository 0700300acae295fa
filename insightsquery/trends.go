package insightsquery

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"hermannm.dev/insights/ast"
	"hermannm.dev/insights/db"
	"hermannm.dev/insights/schema"
	"hermannm.dev/insights/warehouse"
	"hermannm.dev/wrap"
)

const trendsQueryType = "trends_warehouse_query"

// Trends result sets can span many buckets and breakdown values, so they get a larger
// limit than interactive listing queries.
const trendsResultLimit = 10000

// BuildWarehouseTrendsQuery builds the per-bucket aggregation query for a single
// warehouse series: values bucketed on the series' timestamp field, counted (or
// aggregated per the series' math) per bucket, within the resolved date range.
//
// Property filters fan out by type: data_warehouse filters (from the series and the
// query) apply here, while filters typed for other subjects are ignored. A request
// mixing property types is not an error, each filter only applies to the query shape
// it is compatible with.
func BuildWarehouseTrendsQuery(
	series schema.DataWarehouseSeries,
	query schema.TrendsQuery,
	declaredJoins []warehouse.JoinDeclaration,
	from time.Time,
	to time.Time,
) (*ast.SelectQuery, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if err := db.ValidateIdentifiers(
		series.TableName,
		series.IDField,
		series.TimestampField,
	); err != nil {
		return nil, wrap.Error(err, "invalid identifier in warehouse series")
	}

	table := series.TableName
	timestampField := ast.NewField(table, series.TimestampField)

	total, err := mathExpr(series)
	if err != nil {
		return nil, err
	}

	selectExprs := []ast.Expr{
		&ast.Alias{Alias: "date", Expr: bucketExpr(query.Interval, timestampField)},
		&ast.Alias{Alias: "total", Expr: total},
	}
	groupBy := []ast.Expr{ast.NewField("date")}
	orderBy := []ast.OrderExpr{{Expr: ast.NewField("date"), Order: ast.Ascending}}

	selectFrom := &ast.JoinExpr{Table: ast.NewField(table)}

	if query.Breakdown != nil && query.Breakdown.Breakdown != "" {
		breakdownExpr, join, err := resolveBreakdown(table, query.Breakdown, declaredJoins)
		if err != nil {
			return nil, err
		}
		if join != nil {
			selectFrom.NextJoin = join
		}

		selectExprs = append(selectExprs, &ast.Alias{Alias: "breakdown_value", Expr: breakdownExpr})
		groupBy = append(groupBy, ast.NewField("breakdown_value"))
		orderBy = append(
			orderBy,
			ast.OrderExpr{Expr: ast.NewField("breakdown_value"), Order: ast.Ascending},
		)
	}

	filterExprs := []ast.Expr{
		&ast.CompareOperation{Op: ast.GtEq, Left: timestampField, Right: timestampConstant(from)},
		&ast.CompareOperation{Op: ast.LtEq, Left: timestampField, Right: timestampConstant(to)},
	}
	for _, properties := range [][]schema.PropertyFilter{series.Properties, query.Properties} {
		for _, property := range properties {
			if property.Type != schema.PropertyFilterTypeDataWarehouse &&
				property.Type != schema.PropertyFilterTypeHogQL {
				continue
			}
			propertyFilter, err := warehousePropertyExpr(table, property)
			if err != nil {
				return nil, wrap.Errorf(
					err,
					"invalid property filter '%s' on warehouse series",
					property.Key,
				)
			}
			filterExprs = append(filterExprs, propertyFilter)
		}
	}

	return &ast.SelectQuery{
		Select:     selectExprs,
		SelectFrom: selectFrom,
		Where:      ast.NewAnd(filterExprs...),
		GroupBy:    groupBy,
		OrderBy:    orderBy,
	}, nil
}

func bucketExpr(interval string, timestampField ast.Expr) ast.Expr {
	bucketFunction := "toStartOfDay"
	if interval == "month" {
		bucketFunction = "toStartOfMonth"
	}
	return &ast.Call{Name: bucketFunction, Args: []ast.Expr{timestampField}}
}

func mathExpr(series schema.DataWarehouseSeries) (ast.Expr, error) {
	math := series.Math
	if math == "" || math == "total" {
		return &ast.Call{Name: "count", Args: []ast.Expr{}}, nil
	}

	if series.MathProperty == "" {
		return nil, fmt.Errorf(
			"math '%s' on series for table '%s' requires a math property",
			math,
			series.TableName,
		)
	}
	if err := db.ValidateIdentifier(series.MathProperty); err != nil {
		return nil, wrap.Error(err, "invalid math property")
	}
	mathField := ast.NewField(series.TableName, series.MathProperty)

	switch math {
	case "sum", "avg", "min", "max":
		return &ast.Call{Name: math, Args: []ast.Expr{mathField}}, nil
	case "median":
		return quantileExpr(0.5, mathField), nil
	}

	// Quantile maths are named pNN, e.g. p90, p99.
	if percentile, ok := strings.CutPrefix(math, "p"); ok {
		value, err := strconv.Atoi(percentile)
		if err == nil && value > 0 && value < 100 {
			return quantileExpr(float64(value)/100, mathField), nil
		}
	}

	return nil, fmt.Errorf("unsupported math '%s' on series for table '%s'", math, series.TableName)
}

func quantileExpr(level float64, mathField ast.Expr) ast.Expr {
	return &ast.Call{
		Name:   "quantile",
		Params: []ast.Expr{&ast.Constant{Value: level}},
		Args:   []ast.Expr{mathField},
	}
}

// resolveBreakdown maps the breakdown dimension to a field expression, resolving a
// declared join when the breakdown's field chain crosses into another table.
func resolveBreakdown(
	table string,
	breakdown *schema.BreakdownFilter,
	declaredJoins []warehouse.JoinDeclaration,
) (ast.Expr, *ast.JoinExpr, error) {
	chain := strings.Split(breakdown.Breakdown, ".")

	if !warehouse.IsJoinReference(table, chain) {
		if len(chain) == 1 {
			if err := db.ValidateIdentifier(chain[0]); err != nil {
				return nil, nil, wrap.Error(err, "invalid breakdown field")
			}
			return ast.NewField(table, chain[0]), nil, nil
		}
		return ast.NewField(chain...), nil, nil
	}

	join, err := warehouse.ResolveJoin(table, declaredJoins, chain)
	if err != nil {
		return nil, nil, err
	}

	// Event-stream properties live in a JSON column, so a chain through "properties"
	// becomes a JSON extraction on the joined table.
	if len(chain) == 3 && chain[1] == "properties" {
		return &ast.Call{
			Name: "JSONExtractString",
			Args: []ast.Expr{
				ast.NewField(chain[0], "properties"),
				&ast.Constant{Value: chain[2]},
			},
		}, join, nil
	}

	return ast.NewField(chain...), join, nil
}

type TrendsResponse struct {
	Columns []string             `json:"columns"`
	Results []TrendsSeriesResult `json:"results"`
}

// One result series: aggregated values per bucket across the full date range, with
// empty buckets filled with zeroes.
type TrendsSeriesResult struct {
	Label          string    `json:"label"`
	Days           []string  `json:"days"`
	Data           []float64 `json:"data"`
	BreakdownValue any       `json:"breakdown_value,omitempty"`
}

// RunTrendsQuery builds and executes the trends query for each warehouse series in the
// request, densifying the engine's sparse per-bucket rows into full per-bucket vectors.
// A query with zero series returns an empty result set, never an error.
func RunTrendsQuery(
	ctx context.Context,
	executor QueryExecutor,
	query schema.TrendsQuery,
	declaredJoins []warehouse.JoinDeclaration,
	now time.Time,
) (TrendsResponse, error) {
	from, to, err := schema.ResolveDateRange(
		&query.DateRange.DateFrom,
		&query.DateRange.DateTo,
		now,
	)
	if err != nil {
		return TrendsResponse{}, wrap.Error(err, "invalid date range in trends query")
	}

	response := TrendsResponse{Columns: []string{"date", "total"}}
	hasBreakdown := query.Breakdown != nil && query.Breakdown.Breakdown != ""
	if hasBreakdown {
		response.Columns = append(response.Columns, "breakdown_value")
	}

	buckets := bucketStarts(from, to, query.Interval)

	for _, series := range query.Series {
		builtQuery, err := BuildWarehouseTrendsQuery(series, query, declaredJoins, from, to)
		if err != nil {
			return TrendsResponse{}, wrap.Errorf(
				err,
				"failed to build trends query for table '%s'",
				series.TableName,
			)
		}

		result, err := executor.ExecutePaged(
			ctx,
			trendsQueryType,
			builtQuery,
			db.Paginator{Limit: trendsResultLimit},
		)
		if err != nil {
			return TrendsResponse{}, wrap.Errorf(
				err,
				"trends query failed for table '%s'",
				series.TableName,
			)
		}

		seriesResults, err := densifySeriesResults(
			series.TableName,
			result.Results,
			buckets,
			query.Interval,
			hasBreakdown,
		)
		if err != nil {
			return TrendsResponse{}, wrap.Errorf(
				err,
				"failed to parse trends results for table '%s'",
				series.TableName,
			)
		}
		response.Results = append(response.Results, seriesResults...)
	}

	return response, nil
}

// bucketStarts enumerates the bucket start times covering the date range, inclusive of
// the buckets containing both endpoints.
func bucketStarts(from time.Time, to time.Time, interval string) []time.Time {
	var buckets []time.Time
	for bucket := truncateToBucket(from, interval); !bucket.After(to); {
		buckets = append(buckets, bucket)
		if interval == "month" {
			bucket = bucket.AddDate(0, 1, 0)
		} else {
			bucket = bucket.AddDate(0, 0, 1)
		}
	}
	return buckets
}

func truncateToBucket(timestamp time.Time, interval string) time.Time {
	timestamp = timestamp.UTC()
	if interval == "month" {
		return time.Date(timestamp.Year(), timestamp.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(
		timestamp.Year(),
		timestamp.Month(),
		timestamp.Day(),
		0,
		0,
		0,
		0,
		time.UTC,
	)
}

// densifySeriesResults groups sparse result rows by breakdown value (a single group
// without breakdown) and fills each group's per-bucket vector, leaving zeroes for
// buckets the engine returned no row for.
func densifySeriesResults(
	label string,
	rows [][]any,
	buckets []time.Time,
	interval string,
	hasBreakdown bool,
) ([]TrendsSeriesResult, error) {
	bucketIndexes := make(map[time.Time]int, len(buckets))
	for i, bucket := range buckets {
		bucketIndexes[bucket] = i
	}
	days := make([]string, len(buckets))
	for i, bucket := range buckets {
		days[i] = bucket.Format(time.DateOnly)
	}

	type breakdownGroup struct {
		value any
		data  []float64
	}
	groups := make(map[string]*breakdownGroup)

	for _, row := range rows {
		expectedColumns := 2
		if hasBreakdown {
			expectedColumns = 3
		}
		if len(row) < expectedColumns {
			return nil, fmt.Errorf("expected %d result columns, got %d", expectedColumns, len(row))
		}

		bucket, err := bucketValue(row[0], interval)
		if err != nil {
			return nil, err
		}
		value, err := numericValue(row[1])
		if err != nil {
			return nil, err
		}

		groupKey := ""
		var groupValue any
		if hasBreakdown {
			groupValue = row[2]
			groupKey = fmt.Sprint(groupValue)
		}

		group, ok := groups[groupKey]
		if !ok {
			group = &breakdownGroup{value: groupValue, data: make([]float64, len(buckets))}
			groups[groupKey] = group
		}

		if index, ok := bucketIndexes[bucket]; ok {
			group.data[index] += value
		}
	}

	if len(groups) == 0 && !hasBreakdown {
		// No matching rows still yields one all-zero series for the range.
		groups[""] = &breakdownGroup{data: make([]float64, len(buckets))}
	}

	groupKeys := make([]string, 0, len(groups))
	for key := range groups {
		groupKeys = append(groupKeys, key)
	}
	sort.Strings(groupKeys)

	results := make([]TrendsSeriesResult, 0, len(groups))
	for _, key := range groupKeys {
		group := groups[key]
		seriesLabel := label
		if hasBreakdown {
			seriesLabel = fmt.Sprintf("%s: %s", label, key)
		}
		results = append(results, TrendsSeriesResult{
			Label:          seriesLabel,
			Days:           days,
			Data:           group.data,
			BreakdownValue: group.value,
		})
	}
	return results, nil
}

func bucketValue(value any, interval string) (time.Time, error) {
	switch value := value.(type) {
	case time.Time:
		return truncateToBucket(value, interval), nil
	case *time.Time:
		if value != nil {
			return truncateToBucket(*value, interval), nil
		}
	case string:
		if parsed, err := time.Parse(time.DateOnly, value); err == nil {
			return truncateToBucket(parsed, interval), nil
		}
		if parsed, err := time.Parse(engineTimestampFormat, value); err == nil {
			return truncateToBucket(parsed, interval), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported bucket timestamp value '%v' of type %T", value, value)
}

func numericValue(value any) (float64, error) {
	switch value := value.(type) {
	case uint64:
		return float64(value), nil
	case int64:
		return float64(value), nil
	case uint32:
		return float64(value), nil
	case int32:
		return float64(value), nil
	case int:
		return float64(value), nil
	case float64:
		return value, nil
	case float32:
		return float64(value), nil
	}
	return 0, fmt.Errorf("unsupported aggregate value '%v' of type %T", value, value)
}
