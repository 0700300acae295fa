package db

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	clickhouseproto "github.com/ClickHouse/clickhouse-go/v2/lib/proto"
	"github.com/google/uuid"
	"hermannm.dev/devlog/log"
	"hermannm.dev/insights/ast"
	"hermannm.dev/wrap"
)

// LimitContext identifies the caller context a query runs in, which determines the
// default result limit.
type LimitContext uint8

const (
	LimitContextQuery LimitContext = iota + 1
	LimitContextExport
)

func (limitContext LimitContext) DefaultLimit() int {
	switch limitContext {
	case LimitContextExport:
		return 10000
	default:
		return 100
	}
}

// Paginator enforces the result-limit/has-more contract on query execution: it fetches
// one row beyond the limit to determine HasMore without a second round-trip, then trims
// the probe row from the results.
type Paginator struct {
	Limit int
}

func NewPaginator(limitContext LimitContext, limit int) Paginator {
	if limit <= 0 {
		limit = limitContext.DefaultLimit()
	}
	return Paginator{Limit: limit}
}

// The result of a paginated query execution: row tuples, column metadata and engine
// type names, plus whether more rows exist beyond the limit.
type PagedResult struct {
	Results [][]any  `json:"results"`
	Columns []string `json:"columns"`
	Types   []string `json:"types"`
	HasMore bool     `json:"hasMore"`
	// Wall-clock execution time, for cost attribution by the caller.
	Elapsed time.Duration `json:"-"`
}

// TooManyQueriesError is the one retryable execution failure: the engine rejected the
// query because too many queries were running simultaneously. Callers may retry with
// backoff; all other execution failures are surfaced as-is.
type TooManyQueriesError struct {
	cause error
}

func (err *TooManyQueriesError) Error() string {
	return "too many simultaneous queries on database: " + err.cause.Error()
}

func (err *TooManyQueriesError) Unwrap() error {
	return err.cause
}

// See https://github.com/ClickHouse/ClickHouse/blob/bd387f6d2c30f67f2822244c0648f2169adab4d3/src/Common/ErrorCodes.cpp#L208
const clickhouseTooManySimultaneousQueriesErrorCode = 202

func classifyQueryError(err error) error {
	var clickHouseErr *clickhouseproto.Exception
	if errors.As(err, &clickHouseErr) &&
		clickHouseErr.Code == clickhouseTooManySimultaneousQueriesErrorCode {
		return &TooManyQueriesError{cause: err}
	}
	return err
}

// ExecutePaged runs the given query AST against the database, tagged with queryType for
// cost attribution in logs. The query must not carry its own top-level LIMIT; the
// paginator's limit (plus its has-more probe row) is applied here.
func (db InsightsDB) ExecutePaged(
	ctx context.Context,
	queryType string,
	query ast.Expr,
	paginator Paginator,
) (PagedResult, error) {
	queryString, err := PrintSQL(query)
	if err != nil {
		return PagedResult{}, wrap.Error(err, "failed to build query SQL")
	}

	var limited QueryBuilder
	limited.WriteString(queryString)
	limited.WriteString(" LIMIT ")
	limited.WriteInt(paginator.Limit + 1)

	// Tagging the query with an ID lets us correlate our logs with the engine's own
	// query log when investigating slow or failed queries.
	queryID := uuid.NewString()
	ctx = clickhouse.Context(ctx, clickhouse.WithQueryID(queryID))

	log.Debug(
		"executing insights query",
		slog.String("queryType", queryType),
		slog.String("queryId", queryID),
		slog.String("query", limited.String()),
	)

	startTime := time.Now()
	rows, err := db.conn.Query(ctx, limited.String())
	if err != nil {
		return PagedResult{}, wrap.Errorf(
			classifyQueryError(err),
			"query execution failed for query type '%s'",
			queryType,
		)
	}
	defer rows.Close()

	result := PagedResult{Columns: rows.Columns()}

	columnTypes := rows.ColumnTypes()
	result.Types = make([]string, len(columnTypes))
	scanTypes := make([]reflect.Type, len(columnTypes))
	for i, columnType := range columnTypes {
		result.Types[i] = columnType.DatabaseTypeName()
		scanTypes[i] = columnType.ScanType()
	}

	for rows.Next() {
		scanTargets := make([]any, len(scanTypes))
		for i, scanType := range scanTypes {
			scanTargets[i] = reflect.New(scanType).Interface()
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return PagedResult{}, wrap.Errorf(
				err,
				"failed to scan result row for query type '%s'",
				queryType,
			)
		}

		row := make([]any, len(scanTargets))
		for i, scanTarget := range scanTargets {
			row[i] = reflect.ValueOf(scanTarget).Elem().Interface()
		}
		result.Results = append(result.Results, row)
	}
	if err := rows.Err(); err != nil {
		return PagedResult{}, wrap.Errorf(
			classifyQueryError(err),
			"query result iteration failed for query type '%s'",
			queryType,
		)
	}

	result.Elapsed = time.Since(startTime)
	if len(result.Results) > paginator.Limit {
		result.HasMore = true
		result.Results = result.Results[:paginator.Limit]
	}

	log.Debug(
		"insights query completed",
		slog.String("queryType", queryType),
		slog.String("queryId", queryID),
		slog.Int("rows", len(result.Results)),
		slog.Bool("hasMore", result.HasMore),
		slog.Duration("elapsed", result.Elapsed),
	)

	return result, nil
}
