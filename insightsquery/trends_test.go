package insightsquery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/insights/ast"
	"hermannm.dev/insights/db"
	"hermannm.dev/insights/schema"
	"hermannm.dev/insights/warehouse"
)

// fakeExecutor records executed queries and serves canned results, standing in for the
// database in builder/runner tests.
type fakeExecutor struct {
	executed []executedQuery
	result   db.PagedResult
	err      error
}

type executedQuery struct {
	queryType string
	sql       string
	limit     int
}

func (executor *fakeExecutor) ExecutePaged(
	ctx context.Context,
	queryType string,
	query ast.Expr,
	paginator db.Paginator,
) (db.PagedResult, error) {
	sql, err := db.PrintSQL(query)
	if err != nil {
		return db.PagedResult{}, err
	}
	executor.executed = append(
		executor.executed,
		executedQuery{queryType: queryType, sql: sql, limit: paginator.Limit},
	)
	return executor.result, executor.err
}

var testSeries = schema.DataWarehouseSeries{
	TableName:       "t1",
	IDField:         "id",
	TimestampField:  "created",
	DistinctIDField: "user_id",
}

func trendsDate(day int) time.Time {
	return time.Date(2023, time.January, day, 0, 0, 0, 0, time.UTC)
}

func TestBuildWarehouseTrendsQuery(t *testing.T) {
	query, err := BuildWarehouseTrendsQuery(
		testSeries,
		schema.TrendsQuery{Series: []schema.DataWarehouseSeries{testSeries}},
		nil,
		trendsDate(1),
		trendsDate(7),
	)
	require.NoError(t, err)

	sql, err := db.PrintSQL(query)
	require.NoError(t, err)
	assert.Equal(
		t,
		"SELECT toStartOfDay(`t1`.`created`) AS `date`, count() AS `total` FROM `t1`"+
			" WHERE (`t1`.`created` >= toDateTime('2023-01-01 00:00:00')"+
			" AND `t1`.`created` <= toDateTime('2023-01-07 00:00:00'))"+
			" GROUP BY `date` ORDER BY `date` ASC",
		sql,
	)
}

func TestTrendsDensifiesDayBuckets(t *testing.T) {
	executor := &fakeExecutor{
		result: db.PagedResult{
			Columns: []string{"date", "total"},
			Results: [][]any{
				{trendsDate(1), uint64(1)},
				{trendsDate(2), uint64(1)},
				{trendsDate(3), uint64(1)},
				{trendsDate(4), uint64(1)},
			},
		},
	}

	query := schema.TrendsQuery{
		DateRange: schema.DateRange{DateFrom: "2023-01-01", DateTo: "2023-01-07"},
		Series:    []schema.DataWarehouseSeries{testSeries},
	}

	response, err := RunTrendsQuery(context.Background(), executor, query, nil, trendsDate(10))
	require.NoError(t, err)

	require.Len(t, executor.executed, 1)
	assert.Equal(t, "trends_warehouse_query", executor.executed[0].queryType)

	require.Len(t, response.Results, 1)
	result := response.Results[0]
	assert.Equal(t, "t1", result.Label)
	assert.Equal(t, []float64{1, 1, 1, 1, 0, 0, 0}, result.Data)
	require.Len(t, result.Days, 7)
	assert.Equal(t, "2023-01-01", result.Days[0])
	assert.Equal(t, "2023-01-07", result.Days[6])
}

func TestTrendsZeroSeriesReturnsEmptyResults(t *testing.T) {
	executor := &fakeExecutor{}

	query := schema.TrendsQuery{
		DateRange: schema.DateRange{DateFrom: "2023-01-01", DateTo: "2023-01-07"},
	}

	response, err := RunTrendsQuery(context.Background(), executor, query, nil, trendsDate(10))
	require.NoError(t, err)
	assert.Empty(t, response.Results)
	assert.Empty(t, executor.executed)
}

func TestTrendsPropertyFanOut(t *testing.T) {
	series := testSeries
	series.Properties = []schema.PropertyFilter{
		{
			Type:     schema.PropertyFilterTypeDataWarehouse,
			Key:      "plan",
			Value:    "enterprise",
			Operator: schema.PropertyOperatorExact,
		},
	}
	query := schema.TrendsQuery{
		Series: []schema.DataWarehouseSeries{series},
		// Event-typed filters do not apply to warehouse-table queries, and must be
		// ignored rather than rejected.
		Properties: []schema.PropertyFilter{
			{
				Type:     schema.PropertyFilterTypeEvent,
				Key:      "$browser",
				Value:    "Chrome",
				Operator: schema.PropertyOperatorExact,
			},
		},
	}

	builtQuery, err := BuildWarehouseTrendsQuery(series, query, nil, trendsDate(1), trendsDate(7))
	require.NoError(t, err)

	sql, err := db.PrintSQL(builtQuery)
	require.NoError(t, err)
	assert.Contains(t, sql, "`t1`.`plan` = 'enterprise'")
	assert.NotContains(t, sql, "$browser")
}

func TestTrendsBreakdownAcrossJoin(t *testing.T) {
	declaredJoins := []warehouse.JoinDeclaration{
		{
			SourceTableName:  "t1",
			SourceTableKey:   "user_id",
			JoiningTableName: "events",
			JoiningTableKey:  "distinct_id",
			FieldName:        "pageviews",
		},
	}
	query := schema.TrendsQuery{
		Series:    []schema.DataWarehouseSeries{testSeries},
		Breakdown: &schema.BreakdownFilter{Breakdown: "pageviews.properties.$browser"},
	}

	builtQuery, err := BuildWarehouseTrendsQuery(
		testSeries, query, declaredJoins, trendsDate(1), trendsDate(7),
	)
	require.NoError(t, err)

	sql, err := db.PrintSQL(builtQuery)
	require.NoError(t, err)
	assert.Contains(t, sql, "LEFT JOIN `events` AS `pageviews`")
	assert.Contains(t, sql, "JSONExtractString(`pageviews`.`properties`, '$browser') AS `breakdown_value`")
	assert.Contains(t, sql, "GROUP BY `date`, `breakdown_value`")
}

func TestTrendsBreakdownUnresolvedJoin(t *testing.T) {
	query := schema.TrendsQuery{
		Series:    []schema.DataWarehouseSeries{testSeries},
		Breakdown: &schema.BreakdownFilter{Breakdown: "pageviews.properties.$browser"},
	}

	_, err := BuildWarehouseTrendsQuery(testSeries, query, nil, trendsDate(1), trendsDate(7))
	require.Error(t, err)

	var unresolved *warehouse.UnresolvedJoinError
	require.ErrorAs(t, err, &unresolved)
}

func TestTrendsMathAggregations(t *testing.T) {
	series := testSeries
	series.Math = "p90"
	series.MathProperty = "amount"

	builtQuery, err := BuildWarehouseTrendsQuery(
		series,
		schema.TrendsQuery{Series: []schema.DataWarehouseSeries{series}},
		nil,
		trendsDate(1),
		trendsDate(7),
	)
	require.NoError(t, err)

	sql, err := db.PrintSQL(builtQuery)
	require.NoError(t, err)
	assert.Contains(t, sql, "quantile(0.9)(`t1`.`amount`) AS `total`")

	series.Math = "avg"
	builtQuery, err = BuildWarehouseTrendsQuery(
		series,
		schema.TrendsQuery{Series: []schema.DataWarehouseSeries{series}},
		nil,
		trendsDate(1),
		trendsDate(7),
	)
	require.NoError(t, err)
	sql, err = db.PrintSQL(builtQuery)
	require.NoError(t, err)
	assert.Contains(t, sql, "avg(`t1`.`amount`) AS `total`")

	series.Math = "avg"
	series.MathProperty = ""
	_, err = BuildWarehouseTrendsQuery(
		series,
		schema.TrendsQuery{Series: []schema.DataWarehouseSeries{series}},
		nil,
		trendsDate(1),
		trendsDate(7),
	)
	require.Error(t, err, "math with no math property must fail")
}

func TestTrendsBreakdownGroupsResults(t *testing.T) {
	executor := &fakeExecutor{
		result: db.PagedResult{
			Columns: []string{"date", "total", "breakdown_value"},
			Results: [][]any{
				{trendsDate(1), uint64(2), "Chrome"},
				{trendsDate(2), uint64(1), "Firefox"},
				{trendsDate(2), uint64(3), "Chrome"},
			},
		},
	}

	query := schema.TrendsQuery{
		DateRange: schema.DateRange{DateFrom: "2023-01-01", DateTo: "2023-01-02"},
		Series:    []schema.DataWarehouseSeries{testSeries},
		Breakdown: &schema.BreakdownFilter{Breakdown: "plan"},
	}

	response, err := RunTrendsQuery(context.Background(), executor, query, nil, trendsDate(10))
	require.NoError(t, err)

	require.Len(t, response.Results, 2)
	assert.Equal(t, "Chrome", response.Results[0].BreakdownValue)
	assert.Equal(t, []float64{2, 3}, response.Results[0].Data)
	assert.Equal(t, "Firefox", response.Results[1].BreakdownValue)
	assert.Equal(t, []float64{0, 1}, response.Results[1].Data)
}
