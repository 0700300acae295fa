package insightsquery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/insights/db"
)

func TestBuildRevenueTablesQueryZeroTables(t *testing.T) {
	sql, err := db.PrintSQL(BuildRevenueTablesQuery(nil))
	require.NoError(t, err)
	assert.Equal(t, "SELECT NULL WHERE false", sql)
}

func TestBuildRevenueTablesQuerySingleTable(t *testing.T) {
	query := BuildRevenueTablesQuery([]RevenueWarehouseTable{
		{TableName: "stripe_payments", RevenueColumn: "amount", TimestampColumn: "paid_at"},
	})

	sql, err := db.PrintSQL(query)
	require.NoError(t, err)
	assert.Equal(
		t,
		"SELECT 'stripe_payments' AS `table_name`, `stripe_payments`.`amount` AS `revenue`"+
			" FROM `stripe_payments` ORDER BY `stripe_payments`.`paid_at` DESC",
		sql,
	)
}

func TestBuildRevenueTablesQueryUnionsTables(t *testing.T) {
	query := BuildRevenueTablesQuery([]RevenueWarehouseTable{
		{TableName: "stripe_payments", RevenueColumn: "amount", TimestampColumn: "paid_at"},
		{TableName: "invoices", RevenueColumn: "total", TimestampColumn: "issued_at"},
	})

	sql, err := db.PrintSQL(query)
	require.NoError(t, err)
	assert.Equal(
		t,
		"(SELECT 'stripe_payments' AS `table_name`, `stripe_payments`.`amount` AS `revenue`"+
			" FROM `stripe_payments` ORDER BY `stripe_payments`.`paid_at` DESC)"+
			" UNION ALL"+
			" (SELECT 'invoices' AS `table_name`, `invoices`.`total` AS `revenue`"+
			" FROM `invoices` ORDER BY `invoices`.`issued_at` DESC)",
		sql,
	)
}

func TestRunRevenueTablesQuery(t *testing.T) {
	executor := &fakeExecutor{
		result: db.PagedResult{
			Results: [][]any{
				{"stripe_payments", 99.0},
				{"invoices", 150.0},
			},
			Types:   []string{"String", "Float64"},
			HasMore: true,
		},
	}

	response, err := RunRevenueTablesQuery(
		context.Background(),
		executor,
		[]RevenueWarehouseTable{
			{TableName: "stripe_payments", RevenueColumn: "amount", TimestampColumn: "paid_at"},
		},
		0,
	)
	require.NoError(t, err)

	require.Len(t, executor.executed, 1)
	assert.Equal(t, "revenue_warehouse_tables_query", executor.executed[0].queryType)
	// Unset limit falls back to the interactive query default.
	assert.Equal(t, 100, executor.executed[0].limit)

	assert.Equal(t, []string{"table_name", "revenue"}, response.Columns)
	assert.Len(t, response.Results, 2)
	assert.True(t, response.HasMore)
}
