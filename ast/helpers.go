package ast

// NewField builds a dotted field chain reference.
func NewField(chain ...string) *Field {
	return &Field{Chain: chain}
}

// NewAnd combines the given expressions with AND, collapsing the trivial cases: nil for
// no expressions, the expression itself for one.
func NewAnd(exprs ...Expr) Expr {
	return combine(exprs, func(kept []Expr) Expr { return &And{Exprs: kept} })
}

// NewOr combines the given expressions with OR, with the same collapsing as NewAnd.
func NewOr(exprs ...Expr) Expr {
	return combine(exprs, func(kept []Expr) Expr { return &Or{Exprs: kept} })
}

func combine(exprs []Expr, wrap func([]Expr) Expr) Expr {
	kept := make([]Expr, 0, len(exprs))
	for _, expr := range exprs {
		if expr != nil {
			kept = append(kept, expr)
		}
	}

	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return wrap(kept)
	}
}

// CombineSelects merges queries with UNION ALL into a SelectSetQuery, or returns the
// single query unchanged. Returns nil for zero queries; callers wanting a valid
// zero-row query should use EmptySelect instead.
func CombineSelects(queries []*SelectQuery) Expr {
	switch len(queries) {
	case 0:
		return nil
	case 1:
		return queries[0]
	}

	set := &SelectSetQuery{Initial: queries[0]}
	for _, query := range queries[1:] {
		set.Subsequent = append(set.Subsequent, SetOperation{Operator: UnionAll, Query: query})
	}
	return set
}
