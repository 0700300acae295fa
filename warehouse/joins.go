// Package warehouse models externally stored warehouse tables and the joins declared
// between them and auxiliary tables (such as the event stream).
package warehouse

import (
	"fmt"

	"hermannm.dev/insights/ast"
)

// A declared join from a warehouse source table to an auxiliary table, exposing the
// joined table's columns under FieldName on the source table. Joins are resolved
// lazily, only when a query references a field behind FieldName.
type JoinDeclaration struct {
	SourceTableName  string            `json:"source_table_name"`
	SourceTableKey   string            `json:"source_table_key"`
	JoiningTableName string            `json:"joining_table_name"`
	JoiningTableKey  string            `json:"joining_table_key"`
	FieldName        string            `json:"field_name"`
	Configuration    JoinConfiguration `json:"configuration,omitempty"`
}

type JoinConfiguration struct {
	// When set, the join predicate also bounds the joining table's rows to those
	// temporally local to the source row, to avoid full scans of large event streams.
	ExperimentsOptimized bool `json:"experiments_optimized,omitempty"`
	// Source-table column holding the timestamp the bound is taken relative to.
	ExperimentsTimestampKey string `json:"experiments_timestamp_key,omitempty"`
}

// Timestamp column on joining tables used to bound optimized joins. The only joining
// table using optimized joins is the event stream, where this column always exists.
const joiningTableTimestampField = "timestamp"

// How far past the source row's timestamp an optimized join will look for rows.
const optimizedJoinWindowDays = 1

// UnresolvedJoinError is a build-time configuration error: a query referenced a field
// behind a join qualifier with no matching declared join. Failing the build here names
// the missing qualifier, instead of letting the engine fail far from the root cause.
type UnresolvedJoinError struct {
	SourceTable string
	FieldChain  []string
}

func (err *UnresolvedJoinError) Error() string {
	return fmt.Sprintf(
		"no join declared on table '%s' for field reference '%v'",
		err.SourceTable,
		err.FieldChain,
	)
}

// IsJoinReference reports whether the given field chain crosses a join boundary, i.e.
// references a column on a table other than the source table itself.
func IsJoinReference(sourceTable string, fieldChain []string) bool {
	return len(fieldChain) > 1 && fieldChain[0] != sourceTable
}

// ResolveJoin resolves a field chain of the form [qualifier, column...] against the
// joins declared on the source table, returning the JoinExpr to attach to the query's
// FROM clause. The joined table is aliased to the declaration's FieldName, so that the
// field chain resolves as written.
func ResolveJoin(
	sourceTable string,
	declaredJoins []JoinDeclaration,
	fieldChain []string,
) (*ast.JoinExpr, error) {
	if len(fieldChain) < 2 {
		return nil, fmt.Errorf("field chain '%v' is not a join reference", fieldChain)
	}

	qualifier := fieldChain[0]
	for _, declaration := range declaredJoins {
		if declaration.SourceTableName != sourceTable {
			continue
		}
		if declaration.FieldName != qualifier && declaration.JoiningTableName != qualifier {
			continue
		}

		return &ast.JoinExpr{
			Table:      ast.NewField(declaration.JoiningTableName),
			TableAlias: declaration.FieldName,
			JoinType:   "LEFT JOIN",
			Constraint: joinConstraint(declaration),
		}, nil
	}

	return nil, &UnresolvedJoinError{SourceTable: sourceTable, FieldChain: fieldChain}
}

// joinConstraint builds the join predicate. The default is equality on the declared
// keys; optimized joins add temporal bounds on top, so the optimized predicate always
// matches a subset of the rows matched by the default one.
func joinConstraint(declaration JoinDeclaration) ast.Expr {
	equality := &ast.CompareOperation{
		Op:    ast.Eq,
		Left:  ast.NewField(declaration.SourceTableName, declaration.SourceTableKey),
		Right: ast.NewField(declaration.FieldName, declaration.JoiningTableKey),
	}

	configuration := declaration.Configuration
	if !configuration.ExperimentsOptimized || configuration.ExperimentsTimestampKey == "" {
		return equality
	}

	sourceTimestamp := ast.NewField(
		declaration.SourceTableName,
		configuration.ExperimentsTimestampKey,
	)
	joiningTimestamp := ast.NewField(declaration.FieldName, joiningTableTimestampField)

	return ast.NewAnd(
		equality,
		&ast.CompareOperation{Op: ast.GtEq, Left: joiningTimestamp, Right: sourceTimestamp},
		&ast.CompareOperation{
			Op:   ast.LtEq,
			Left: joiningTimestamp,
			Right: &ast.Call{
				Name: "addDays",
				Args: []ast.Expr{sourceTimestamp, &ast.Constant{Value: optimizedJoinWindowDays}},
			},
		},
	)
}
