package insightsquery

import (
	"context"

	"hermannm.dev/insights/ast"
	"hermannm.dev/insights/db"
	"hermannm.dev/wrap"
)

// A warehouse table configured as a revenue source, with the two column mappings the
// revenue query needs.
type RevenueWarehouseTable struct {
	TableName       string `json:"tableName"`
	RevenueColumn   string `json:"revenueColumn"`
	TimestampColumn string `json:"timestampColumn"`
}

var revenueQueryColumns = []string{"table_name", "revenue"}

// BuildRevenueTablesQuery builds one SELECT per configured revenue table, projecting
// the table's name and its revenue column, merged with UNION ALL. Heterogeneous tables
// need no common schema beyond those two projected columns. Zero tables yield a valid
// zero-row query, so a revenue dashboard with nothing configured renders an empty
// state instead of failing.
func BuildRevenueTablesQuery(tables []RevenueWarehouseTable) ast.Expr {
	queries := make([]*ast.SelectQuery, 0, len(tables))
	for _, table := range tables {
		queries = append(queries, &ast.SelectQuery{
			Select: []ast.Expr{
				&ast.Alias{Alias: "table_name", Expr: &ast.Constant{Value: table.TableName}},
				&ast.Alias{
					Alias: "revenue",
					Expr:  ast.NewField(table.TableName, table.RevenueColumn),
				},
			},
			SelectFrom: &ast.JoinExpr{Table: ast.NewField(table.TableName)},
			OrderBy: []ast.OrderExpr{
				{
					Expr:  ast.NewField(table.TableName, table.TimestampColumn),
					Order: ast.Descending,
				},
			},
		})
	}

	if len(queries) == 0 {
		return ast.EmptySelect()
	}
	return ast.CombineSelects(queries)
}

type RevenueTablesResponse struct {
	Columns []string `json:"columns"`
	Results [][]any  `json:"results"`
	Types   []string `json:"types"`
	HasMore bool     `json:"hasMore"`
}

// RunRevenueTablesQuery builds and executes the revenue tables query, returning the
// row-wise union of the configured tables' revenue entries.
func RunRevenueTablesQuery(
	ctx context.Context,
	executor QueryExecutor,
	tables []RevenueWarehouseTable,
	limit int,
) (RevenueTablesResponse, error) {
	paginator := db.NewPaginator(db.LimitContextQuery, limit)

	result, err := executor.ExecutePaged(
		ctx,
		"revenue_warehouse_tables_query",
		BuildRevenueTablesQuery(tables),
		paginator,
	)
	if err != nil {
		return RevenueTablesResponse{}, wrap.Error(err, "revenue tables query failed")
	}

	return RevenueTablesResponse{
		Columns: revenueQueryColumns,
		Results: result.Results,
		Types:   result.Types,
		HasMore: result.HasMore,
	}, nil
}
