package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/insights/ast"
)

var declaredJoins = []JoinDeclaration{
	{
		SourceTableName:  "orders",
		SourceTableKey:   "user_id",
		JoiningTableName: "events",
		JoiningTableKey:  "distinct_id",
		FieldName:        "pageviews",
	},
	{
		SourceTableName:  "subscriptions",
		SourceTableKey:   "customer_id",
		JoiningTableName: "events",
		JoiningTableKey:  "distinct_id",
		FieldName:        "exposures",
		Configuration: JoinConfiguration{
			ExperimentsOptimized:    true,
			ExperimentsTimestampKey: "created_at",
		},
	},
}

func TestIsJoinReference(t *testing.T) {
	assert.False(t, IsJoinReference("orders", []string{"amount"}))
	assert.False(t, IsJoinReference("orders", []string{"orders", "amount"}))
	assert.True(t, IsJoinReference("orders", []string{"pageviews", "properties", "$browser"}))
}

func TestResolveJoinByFieldName(t *testing.T) {
	join, err := ResolveJoin("orders", declaredJoins, []string{"pageviews", "event"})
	require.NoError(t, err)

	assert.Equal(t, ast.NewField("events"), join.Table)
	assert.Equal(t, "pageviews", join.TableAlias)
	assert.Equal(t, "LEFT JOIN", join.JoinType)
	assert.Equal(t, &ast.CompareOperation{
		Op:    ast.Eq,
		Left:  ast.NewField("orders", "user_id"),
		Right: ast.NewField("pageviews", "distinct_id"),
	}, join.Constraint)
}

func TestResolveJoinByJoiningTableName(t *testing.T) {
	join, err := ResolveJoin("orders", declaredJoins, []string{"events", "event"})
	require.NoError(t, err)
	assert.Equal(t, "pageviews", join.TableAlias)
}

func TestResolveOptimizedJoinConstrainsTimestamp(t *testing.T) {
	join, err := ResolveJoin("subscriptions", declaredJoins, []string{"exposures", "event"})
	require.NoError(t, err)

	// The optimized constraint must keep the base equality and add temporal bounds on
	// top, so every row it matches would also match the non-optimized join.
	and, ok := join.Constraint.(*ast.And)
	require.True(t, ok, "optimized join constraint must be a conjunction")
	require.Len(t, and.Exprs, 3)

	assert.Equal(t, &ast.CompareOperation{
		Op:    ast.Eq,
		Left:  ast.NewField("subscriptions", "customer_id"),
		Right: ast.NewField("exposures", "distinct_id"),
	}, and.Exprs[0])

	lowerBound, ok := and.Exprs[1].(*ast.CompareOperation)
	require.True(t, ok)
	assert.Equal(t, ast.GtEq, lowerBound.Op)
	assert.Equal(t, ast.NewField("exposures", "timestamp"), lowerBound.Left)
	assert.Equal(t, ast.NewField("subscriptions", "created_at"), lowerBound.Right)

	upperBound, ok := and.Exprs[2].(*ast.CompareOperation)
	require.True(t, ok)
	assert.Equal(t, ast.LtEq, upperBound.Op)
	upperCall, ok := upperBound.Right.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "addDays", upperCall.Name)
}

func TestResolveJoinUnknownQualifier(t *testing.T) {
	_, err := ResolveJoin("orders", declaredJoins, []string{"payments", "amount"})
	require.Error(t, err)

	var unresolved *UnresolvedJoinError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "orders", unresolved.SourceTable)
	assert.Equal(t, []string{"payments", "amount"}, unresolved.FieldChain)
}
