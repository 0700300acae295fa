// Package insightsquery builds query ASTs from typed query requests: session recording
// listings, warehouse trends and revenue table queries.
package insightsquery

import (
	"fmt"

	"hermannm.dev/insights/ast"
	"hermannm.dev/insights/schema"
)

// warehousePropertyExpr builds the filter expression for a property filter against a
// warehouse table, where properties are physical columns.
func warehousePropertyExpr(table string, filter schema.PropertyFilter) (ast.Expr, error) {
	if filter.Type == schema.PropertyFilterTypeHogQL {
		return &ast.RawExpr{SQL: filter.Key}, nil
	}
	return propertyExpr(ast.NewField(table, filter.Key), filter)
}

// eventPropertyExpr builds the filter expression for a property filter against the
// event stream, where properties live in a JSON column.
func eventPropertyExpr(filter schema.PropertyFilter) (ast.Expr, error) {
	if filter.Type == schema.PropertyFilterTypeHogQL {
		return &ast.RawExpr{SQL: filter.Key}, nil
	}
	extracted := &ast.Call{
		Name: "JSONExtractString",
		Args: []ast.Expr{ast.NewField("properties"), &ast.Constant{Value: filter.Key}},
	}
	return propertyExpr(extracted, filter)
}

// propertyExpr maps a property filter's operator and value onto the given field
// expression.
func propertyExpr(field ast.Expr, filter schema.PropertyFilter) (ast.Expr, error) {
	switch filter.Operator {
	case schema.PropertyOperatorExact, schema.PropertyOperatorIn:
		if values, ok := filter.Value.([]any); ok {
			// An empty value list matches nothing; IN () is a syntax error on the engine.
			if len(values) == 0 {
				return &ast.Constant{Value: false}, nil
			}
			return &ast.CompareOperation{
				Op:    ast.In,
				Left:  field,
				Right: &ast.Constant{Value: values},
			}, nil
		}
		return &ast.CompareOperation{
			Op:    ast.Eq,
			Left:  field,
			Right: &ast.Constant{Value: filter.Value},
		}, nil

	case schema.PropertyOperatorIsNot, schema.PropertyOperatorNotIn:
		if values, ok := filter.Value.([]any); ok {
			// Excluding nothing excludes no rows.
			if len(values) == 0 {
				return &ast.Constant{Value: true}, nil
			}
			return &ast.CompareOperation{
				Op:    ast.NotIn,
				Left:  field,
				Right: &ast.Constant{Value: values},
			}, nil
		}
		return &ast.CompareOperation{
			Op:    ast.NotEq,
			Left:  field,
			Right: &ast.Constant{Value: filter.Value},
		}, nil

	case schema.PropertyOperatorIContains, schema.PropertyOperatorNotIContains:
		pattern, ok := filter.Value.(string)
		if !ok {
			return nil, fmt.Errorf(
				"operator '%s' requires a string value, got '%v'",
				filter.Operator,
				filter.Value,
			)
		}
		op := ast.ILike
		if filter.Operator == schema.PropertyOperatorNotIContains {
			op = ast.NotILike
		}
		return &ast.CompareOperation{
			Op:    op,
			Left:  field,
			Right: &ast.Constant{Value: "%" + pattern + "%"},
		}, nil

	case schema.PropertyOperatorRegex, schema.PropertyOperatorNotRegex:
		op := ast.Regex
		if filter.Operator == schema.PropertyOperatorNotRegex {
			op = ast.NotRegex
		}
		return &ast.CompareOperation{
			Op:    op,
			Left:  field,
			Right: &ast.Constant{Value: filter.Value},
		}, nil

	case schema.PropertyOperatorGreaterThan:
		return comparison(ast.Gt, field, filter.Value), nil
	case schema.PropertyOperatorGreaterOrEq:
		return comparison(ast.GtEq, field, filter.Value), nil
	case schema.PropertyOperatorLessThan:
		return comparison(ast.Lt, field, filter.Value), nil
	case schema.PropertyOperatorLessOrEq:
		return comparison(ast.LtEq, field, filter.Value), nil

	case schema.PropertyOperatorIsSet:
		return &ast.Call{Name: "isNotNull", Args: []ast.Expr{field}}, nil
	case schema.PropertyOperatorIsNotSet:
		return &ast.Call{Name: "isNull", Args: []ast.Expr{field}}, nil
	}

	return nil, fmt.Errorf("unsupported property filter operator '%s'", filter.Operator)
}

func comparison(op ast.CompareOperator, field ast.Expr, value any) ast.Expr {
	return &ast.CompareOperation{Op: op, Left: field, Right: &ast.Constant{Value: value}}
}

// combineWithOperand joins filter expressions with the query's logical operand.
func combineWithOperand(operand schema.FilterLogicalOperator, exprs []ast.Expr) ast.Expr {
	if operand == schema.FilterLogicalOperatorOr {
		return ast.NewOr(exprs...)
	}
	return ast.NewAnd(exprs...)
}
