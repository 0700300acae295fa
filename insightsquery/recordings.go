package insightsquery

import (
	"context"
	"fmt"
	"time"

	"hermannm.dev/insights/ast"
	"hermannm.dev/insights/db"
	"hermannm.dev/insights/schema"
	"hermannm.dev/wrap"
)

const recordingsQueryType = "session_recordings_query"

const (
	recordingsTable = "session_replay_events"
	eventsTable     = "events"
	logEntriesTable = "log_entries"
)

// Session IDs on the event stream are carried as an event property, not a column.
const sessionIDProperty = "$session_id"

// The default listing window for recordings is short: sessions older than a few days
// are rarely browsed, and the replay table is large.
const defaultRecordingsDateFrom = "-3d"

const defaultRecordingsOrder = "start_time"

// Aggregated columns recordings can be ordered by. Anything else in the order field is
// rejected up front, instead of being interpolated into the query.
var recordingsOrderFields = map[string]bool{
	"start_time":           true,
	"duration":             true,
	"active_seconds":       true,
	"inactive_seconds":     true,
	"console_error_count":  true,
	"click_count":          true,
	"keypress_count":       true,
	"mouse_activity_count": true,
}

// BuildRecordingsQuery builds the session listing query: one row per session, with
// aggregates derived from the session's replay events. Event, action, console-log and
// generic property filters become session-ID subqueries on their respective tables,
// combined under the query's operand. Having predicates (duration thresholds,
// snapshot_source) apply after aggregation, since they constrain derived values.
func BuildRecordingsQuery(
	query schema.RecordingsQuery,
	testAccountFilters []schema.PropertyFilter,
	from time.Time,
	to time.Time,
) (*ast.SelectQuery, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	order := query.Order
	if order == "" {
		order = defaultRecordingsOrder
	}
	if !recordingsOrderFields[order] {
		return nil, fmt.Errorf("invalid order field '%s' in recordings query", order)
	}

	selectExprs := []ast.Expr{
		ast.NewField("session_id"),
		aggregateAlias("start_time", "min", "min_first_timestamp"),
		aggregateAlias("end_time", "max", "max_last_timestamp"),
		&ast.Alias{
			Alias: "duration",
			Expr: &ast.Call{
				Name: "dateDiff",
				Args: []ast.Expr{
					&ast.Constant{Value: "second"},
					ast.NewField("start_time"),
					ast.NewField("end_time"),
				},
			},
		},
		&ast.Alias{
			Alias: "active_seconds",
			Expr: &ast.Call{
				Name: "divide",
				Args: []ast.Expr{
					&ast.Call{Name: "sum", Args: []ast.Expr{ast.NewField("active_milliseconds")}},
					&ast.Constant{Value: 1000},
				},
			},
		},
		&ast.Alias{
			Alias: "inactive_seconds",
			Expr: &ast.Call{
				Name: "minus",
				Args: []ast.Expr{ast.NewField("duration"), ast.NewField("active_seconds")},
			},
		},
		aggregateAlias("console_error_count", "sum", "console_error_count"),
		aggregateAlias("click_count", "sum", "click_count"),
		aggregateAlias("keypress_count", "sum", "keypress_count"),
		aggregateAlias("mouse_activity_count", "sum", "mouse_activity_count"),
	}
	if hasHavingPredicateOn(query, "snapshot_source") {
		selectExprs = append(
			selectExprs,
			aggregateAlias("snapshot_source", "any", "snapshot_source"),
		)
	}

	sessionTimestamp := ast.NewField("min_first_timestamp")
	where := []ast.Expr{
		&ast.CompareOperation{Op: ast.GtEq, Left: sessionTimestamp, Right: timestampConstant(from)},
		&ast.CompareOperation{Op: ast.LtEq, Left: sessionTimestamp, Right: timestampConstant(to)},
	}

	properties := query.Properties
	if query.FilterTestAccounts && len(testAccountFilters) > 0 {
		properties = make([]schema.PropertyFilter, 0, len(query.Properties)+len(testAccountFilters))
		properties = append(properties, query.Properties...)
		properties = append(properties, testAccountFilters...)
	}

	filterConditions, err := recordingsFilterConditions(query, properties, from, to)
	if err != nil {
		return nil, err
	}
	if condition := combineWithOperand(query.Operand, filterConditions); condition != nil {
		where = append(where, condition)
	}

	// Having-predicates are baseline constraints (duration threshold, snapshot source),
	// so they always conjoin, even when the filter conditions use OR.
	having, err := recordingsHavingPredicates(query)
	if err != nil {
		return nil, err
	}

	return &ast.SelectQuery{
		Select:     selectExprs,
		SelectFrom: &ast.JoinExpr{Table: ast.NewField(recordingsTable)},
		Where:      ast.NewAnd(where...),
		GroupBy:    []ast.Expr{ast.NewField("session_id")},
		Having:     ast.NewAnd(having...),
		OrderBy: []ast.OrderExpr{
			{Expr: ast.NewField(order), Order: ast.Descending},
		},
	}, nil
}

func aggregateAlias(alias string, aggregate string, column string) ast.Expr {
	return &ast.Alias{
		Alias: alias,
		Expr:  &ast.Call{Name: aggregate, Args: []ast.Expr{ast.NewField(column)}},
	}
}

func hasHavingPredicateOn(query schema.RecordingsQuery, key string) bool {
	for _, predicate := range query.HavingPredicates {
		if predicate.Key == key {
			return true
		}
	}
	return false
}

// recordingsFilterConditions builds the operand-combined session conditions. Filters
// on other tables (events, actions, log entries, event/person properties) cannot be
// evaluated on the replay table directly, so each becomes a `session_id IN (...)`
// subquery against the table that holds the filtered data.
func recordingsFilterConditions(
	query schema.RecordingsQuery,
	properties []schema.PropertyFilter,
	from time.Time,
	to time.Time,
) ([]ast.Expr, error) {
	var conditions []ast.Expr

	for _, property := range properties {
		if property.Type == schema.PropertyFilterTypeHogQL {
			expr, err := warehousePropertyExpr(recordingsTable, property)
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, expr)
			continue
		}

		propertyCondition, err := eventPropertyExpr(property)
		if err != nil {
			return nil, wrap.Errorf(err, "invalid property filter '%s'", property.Key)
		}
		conditions = append(
			conditions,
			sessionIDSubquery(eventsTable, []ast.Expr{propertyCondition}, from, to),
		)
	}

	for _, event := range query.Events {
		eventConditions := []ast.Expr{
			&ast.CompareOperation{
				Op:    ast.Eq,
				Left:  ast.NewField("event"),
				Right: &ast.Constant{Value: event.Name},
			},
		}
		for _, property := range event.Properties {
			propertyCondition, err := eventPropertyExpr(property)
			if err != nil {
				return nil, wrap.Errorf(
					err,
					"invalid property filter '%s' on event '%s'",
					property.Key,
					event.Name,
				)
			}
			eventConditions = append(eventConditions, propertyCondition)
		}
		conditions = append(conditions, sessionIDSubquery(eventsTable, eventConditions, from, to))
	}

	// Actions are stored server-side as a name plus property constraints over the event
	// stream, so an action filter reduces to an events subquery over those constraints.
	for _, action := range query.Actions {
		var actionConditions []ast.Expr
		if action.Name != "" {
			actionConditions = append(actionConditions, &ast.CompareOperation{
				Op:    ast.Eq,
				Left:  ast.NewField("event"),
				Right: &ast.Constant{Value: action.Name},
			})
		}
		for _, property := range action.Properties {
			propertyCondition, err := eventPropertyExpr(property)
			if err != nil {
				return nil, wrap.Errorf(
					err,
					"invalid property filter '%s' on action '%s'",
					property.Key,
					action.ID.String(),
				)
			}
			actionConditions = append(actionConditions, propertyCondition)
		}
		if len(actionConditions) == 0 {
			return nil, fmt.Errorf(
				"action filter '%s' has no name or property constraints",
				action.ID.String(),
			)
		}
		conditions = append(conditions, sessionIDSubquery(eventsTable, actionConditions, from, to))
	}

	for _, consoleLogFilter := range query.ConsoleLogFilters {
		if err := db.ValidateIdentifier(consoleLogFilter.Key); err != nil {
			return nil, wrap.Error(err, "invalid console log filter key")
		}
		logCondition, err := propertyExpr(ast.NewField(consoleLogFilter.Key), consoleLogFilter)
		if err != nil {
			return nil, wrap.Errorf(err, "invalid console log filter '%s'", consoleLogFilter.Key)
		}
		conditions = append(
			conditions,
			sessionIDSubquery(logEntriesTable, []ast.Expr{logCondition}, from, to),
		)
	}

	return conditions, nil
}

// sessionIDSubquery builds a `session_id IN (SELECT ... FROM table ...)` condition.
// The subquery gets the same date bounds as the outer query, so large auxiliary tables
// are never scanned outside the listing window.
func sessionIDSubquery(
	table string,
	conditions []ast.Expr,
	from time.Time,
	to time.Time,
) ast.Expr {
	var sessionID ast.Expr
	if table == logEntriesTable {
		sessionID = ast.NewField("log_source_id")
	} else {
		sessionID = &ast.Call{
			Name: "JSONExtractString",
			Args: []ast.Expr{
				ast.NewField("properties"),
				&ast.Constant{Value: sessionIDProperty},
			},
		}
	}

	timestamp := ast.NewField("timestamp")
	where := append(
		[]ast.Expr{
			&ast.CompareOperation{Op: ast.GtEq, Left: timestamp, Right: timestampConstant(from)},
			&ast.CompareOperation{Op: ast.LtEq, Left: timestamp, Right: timestampConstant(to)},
		},
		conditions...,
	)

	return &ast.CompareOperation{
		Op:   ast.In,
		Left: ast.NewField("session_id"),
		Right: &ast.SelectQuery{
			Select:     []ast.Expr{sessionID},
			SelectFrom: &ast.JoinExpr{Table: ast.NewField(table)},
			Where:      ast.NewAnd(where...),
		},
	}
}

func recordingsHavingPredicates(query schema.RecordingsQuery) ([]ast.Expr, error) {
	var having []ast.Expr
	for _, predicate := range query.HavingPredicates {
		if err := db.ValidateIdentifier(predicate.Key); err != nil {
			return nil, wrap.Error(err, "invalid having predicate key")
		}
		predicateExpr, err := propertyExpr(ast.NewField(predicate.Key), predicate)
		if err != nil {
			return nil, wrap.Errorf(err, "invalid having predicate '%s'", predicate.Key)
		}
		having = append(having, predicateExpr)
	}
	return having, nil
}

// The recordings listing result: the matching session IDs in order, plus whether more
// sessions matched beyond the requested limit.
type RecordingsResponse struct {
	SessionIDs []string `json:"session_ids"`
	HasMore    bool     `json:"has_more"`
}

// RunRecordingsQuery builds and executes the session listing query, returning the
// matching session IDs.
func RunRecordingsQuery(
	ctx context.Context,
	executor QueryExecutor,
	query schema.RecordingsQuery,
	testAccountFilters []schema.PropertyFilter,
	now time.Time,
) (RecordingsResponse, error) {
	dateFrom := query.DateFrom
	if dateFrom == nil {
		defaultDateFrom := defaultRecordingsDateFrom
		dateFrom = &defaultDateFrom
	}
	from, to, err := schema.ResolveDateRange(dateFrom, query.DateTo, now)
	if err != nil {
		return RecordingsResponse{}, wrap.Error(err, "invalid date range in recordings query")
	}

	builtQuery, err := BuildRecordingsQuery(query, testAccountFilters, from, to)
	if err != nil {
		return RecordingsResponse{}, wrap.Error(err, "failed to build recordings query")
	}

	result, err := executor.ExecutePaged(
		ctx,
		recordingsQueryType,
		builtQuery,
		db.NewPaginator(db.LimitContextQuery, query.Limit),
	)
	if err != nil {
		return RecordingsResponse{}, wrap.Error(err, "recordings query failed")
	}

	response := RecordingsResponse{HasMore: result.HasMore}
	for _, row := range result.Results {
		if len(row) == 0 {
			continue
		}
		sessionID, ok := row[0].(string)
		if !ok {
			return RecordingsResponse{}, fmt.Errorf(
				"expected session ID in first result column, got '%v' of type %T",
				row[0],
				row[0],
			)
		}
		response.SessionIDs = append(response.SessionIDs, sessionID)
	}
	return response, nil
}
