// Package ast defines the abstract syntax tree for analytical SELECT queries, built by
// the query builders and printed to engine SQL by the db package.
package ast

// Expr is implemented by every AST node that can appear in an expression position.
type Expr interface {
	expr()
}

// A single SELECT statement over one table (possibly with joins).
type SelectQuery struct {
	Select     []Expr
	SelectFrom *JoinExpr
	Where      Expr
	GroupBy    []Expr
	Having     Expr
	OrderBy    []OrderExpr
	// 0 means no LIMIT clause.
	Limit int
}

func (*SelectQuery) expr() {}

// EmptySelect returns a syntactically valid SELECT producing zero rows, for queries
// built from zero series. Callers render an empty state rather than failing.
func EmptySelect() *SelectQuery {
	return &SelectQuery{
		Select: []Expr{&Constant{Value: nil}},
		Where:  &Constant{Value: false},
	}
}

// A set operation (UNION ALL etc.) combining multiple SELECTs into one logical result
// set, without requiring a common physical schema beyond the projected columns.
type SelectSetQuery struct {
	Initial    *SelectQuery
	Subsequent []SetOperation
}

func (*SelectSetQuery) expr() {}

type SetOperation struct {
	Operator SetOperator
	Query    *SelectQuery
}

type SetOperator uint8

const (
	UnionAll SetOperator = iota + 1
	UnionDistinct
	Intersect
	Except
)

// A dotted chain reference ("table.column" or deeper), resolved against the query's
// tables and declared joins.
type Field struct {
	Chain []string
}

func (*Field) expr() {}

type Alias struct {
	Alias string
	Expr  Expr
}

func (*Alias) expr() {}

// A literal value: string, number, bool or nil.
type Constant struct {
	Value any
}

func (*Constant) expr() {}

// A function call, e.g. count(...), toStartOfDay(...), quantile(0.99)(...).
// Params holds parametric-aggregate parameters (the first parenthesis group).
type Call struct {
	Name   string
	Args   []Expr
	Params []Expr
}

func (*Call) expr() {}

type And struct {
	Exprs []Expr
}

func (*And) expr() {}

type Or struct {
	Exprs []Expr
}

func (*Or) expr() {}

type Not struct {
	Expr Expr
}

func (*Not) expr() {}

type CompareOperation struct {
	Op    CompareOperator
	Left  Expr
	Right Expr
}

func (*CompareOperation) expr() {}

type CompareOperator uint8

const (
	Eq CompareOperator = iota + 1
	NotEq
	Gt
	GtEq
	Lt
	LtEq
	Like
	NotLike
	ILike
	NotILike
	In
	NotIn
	Regex
	NotRegex
)

// A table reference in a FROM clause, with any number of chained joins. Table is either
// a *Field naming a table, or a nested *SelectQuery/*SelectSetQuery.
type JoinExpr struct {
	Table      Expr
	TableAlias string
	// "JOIN", "LEFT JOIN", etc. Empty for the first table in a FROM clause.
	JoinType   string
	Constraint Expr
	NextJoin   *JoinExpr
}

func (*JoinExpr) expr() {}

type OrderExpr struct {
	Expr  Expr
	Order SortOrder
}

// A raw expression in the engine's SQL dialect, written through without identifier
// validation. Only built from the saved-filter expression escape hatch, never from
// user-supplied field names.
type RawExpr struct {
	SQL string
}

func (*RawExpr) expr() {}

type SortOrder uint8

const (
	Ascending SortOrder = iota + 1
	Descending
)
