package db

import (
	"fmt"

	"hermannm.dev/insights/ast"
	"hermannm.dev/wrap"
)

// PrintSQL renders a query AST (a *ast.SelectQuery or *ast.SelectSetQuery) to the SQL
// dialect of the execution engine. Identifiers are validated before being written, so a
// malformed field chain fails here rather than at the engine.
func PrintSQL(query ast.Expr) (string, error) {
	var builder QueryBuilder

	switch query := query.(type) {
	case *ast.SelectQuery:
		if err := writeSelect(&builder, query); err != nil {
			return "", err
		}
	case *ast.SelectSetQuery:
		if err := writeSelectSet(&builder, query); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("expected SELECT query at top level, got %T", query)
	}

	return builder.String(), nil
}

func writeSelect(builder *QueryBuilder, query *ast.SelectQuery) error {
	if len(query.Select) == 0 {
		return fmt.Errorf("SELECT clause is empty")
	}

	builder.WriteString("SELECT ")
	for i, expr := range query.Select {
		if i > 0 {
			builder.WriteString(", ")
		}
		if err := writeExpr(builder, expr); err != nil {
			return wrap.Error(err, "failed to write SELECT expression")
		}
	}

	if query.SelectFrom != nil {
		builder.WriteString(" FROM ")
		if err := writeJoin(builder, query.SelectFrom, true); err != nil {
			return wrap.Error(err, "failed to write FROM clause")
		}
	}

	if query.Where != nil {
		builder.WriteString(" WHERE ")
		if err := writeExpr(builder, query.Where); err != nil {
			return wrap.Error(err, "failed to write WHERE clause")
		}
	}

	if len(query.GroupBy) > 0 {
		builder.WriteString(" GROUP BY ")
		for i, expr := range query.GroupBy {
			if i > 0 {
				builder.WriteString(", ")
			}
			if err := writeExpr(builder, expr); err != nil {
				return wrap.Error(err, "failed to write GROUP BY clause")
			}
		}
	}

	if query.Having != nil {
		builder.WriteString(" HAVING ")
		if err := writeExpr(builder, query.Having); err != nil {
			return wrap.Error(err, "failed to write HAVING clause")
		}
	}

	if len(query.OrderBy) > 0 {
		builder.WriteString(" ORDER BY ")
		for i, orderBy := range query.OrderBy {
			if i > 0 {
				builder.WriteString(", ")
			}
			if err := writeExpr(builder, orderBy.Expr); err != nil {
				return wrap.Error(err, "failed to write ORDER BY clause")
			}
			switch orderBy.Order {
			case ast.Descending:
				builder.WriteString(" DESC")
			default:
				builder.WriteString(" ASC")
			}
		}
	}

	if query.Limit > 0 {
		builder.WriteString(" LIMIT ")
		builder.WriteInt(query.Limit)
	}

	return nil
}

func writeSelectSet(builder *QueryBuilder, query *ast.SelectSetQuery) error {
	builder.WriteByte('(')
	if err := writeSelect(builder, query.Initial); err != nil {
		return err
	}
	builder.WriteByte(')')

	for _, operation := range query.Subsequent {
		switch operation.Operator {
		case ast.UnionAll:
			builder.WriteString(" UNION ALL ")
		case ast.UnionDistinct:
			builder.WriteString(" UNION DISTINCT ")
		case ast.Intersect:
			builder.WriteString(" INTERSECT ")
		case ast.Except:
			builder.WriteString(" EXCEPT ")
		default:
			return fmt.Errorf("unrecognized set operator '%v'", operation.Operator)
		}

		builder.WriteByte('(')
		if err := writeSelect(builder, operation.Query); err != nil {
			return err
		}
		builder.WriteByte(')')
	}

	return nil
}

func writeJoin(builder *QueryBuilder, join *ast.JoinExpr, first bool) error {
	if !first {
		builder.WriteByte(' ')
		if join.JoinType == "" {
			builder.WriteString("JOIN")
		} else {
			builder.WriteString(join.JoinType)
		}
		builder.WriteByte(' ')
	}

	switch table := join.Table.(type) {
	case *ast.Field:
		if err := writeField(builder, table); err != nil {
			return wrap.Error(err, "invalid table reference in join")
		}
	case *ast.SelectQuery:
		builder.WriteByte('(')
		if err := writeSelect(builder, table); err != nil {
			return err
		}
		builder.WriteByte(')')
	case *ast.SelectSetQuery:
		builder.WriteByte('(')
		if err := writeSelectSet(builder, table); err != nil {
			return err
		}
		builder.WriteByte(')')
	default:
		return fmt.Errorf("unsupported table expression %T in join", join.Table)
	}

	if join.TableAlias != "" {
		if err := ValidateIdentifier(join.TableAlias); err != nil {
			return wrap.Error(err, "invalid table alias in join")
		}
		builder.WriteString(" AS ")
		builder.WriteIdentifier(join.TableAlias)
	}

	if join.Constraint != nil {
		builder.WriteString(" ON ")
		if err := writeExpr(builder, join.Constraint); err != nil {
			return wrap.Error(err, "failed to write join constraint")
		}
	}

	if join.NextJoin != nil {
		return writeJoin(builder, join.NextJoin, false)
	}

	return nil
}

func writeExpr(builder *QueryBuilder, expr ast.Expr) error {
	switch expr := expr.(type) {
	case *ast.Field:
		return writeField(builder, expr)
	case *ast.Alias:
		if err := ValidateIdentifier(expr.Alias); err != nil {
			return wrap.Error(err, "invalid alias")
		}
		if err := writeExpr(builder, expr.Expr); err != nil {
			return err
		}
		builder.WriteString(" AS ")
		builder.WriteIdentifier(expr.Alias)
		return nil
	case *ast.Constant:
		return writeConstant(builder, expr.Value)
	case *ast.Call:
		return writeCall(builder, expr)
	case *ast.And:
		return writeLogical(builder, expr.Exprs, " AND ")
	case *ast.Or:
		return writeLogical(builder, expr.Exprs, " OR ")
	case *ast.Not:
		builder.WriteString("NOT (")
		if err := writeExpr(builder, expr.Expr); err != nil {
			return err
		}
		builder.WriteByte(')')
		return nil
	case *ast.CompareOperation:
		return writeCompare(builder, expr)
	case *ast.RawExpr:
		builder.WriteByte('(')
		builder.WriteString(expr.SQL)
		builder.WriteByte(')')
		return nil
	case *ast.SelectQuery:
		builder.WriteByte('(')
		if err := writeSelect(builder, expr); err != nil {
			return err
		}
		builder.WriteByte(')')
		return nil
	case *ast.SelectSetQuery:
		builder.WriteByte('(')
		if err := writeSelectSet(builder, expr); err != nil {
			return err
		}
		builder.WriteByte(')')
		return nil
	default:
		return fmt.Errorf("unsupported expression type %T", expr)
	}
}

func writeField(builder *QueryBuilder, field *ast.Field) error {
	if len(field.Chain) == 0 {
		return fmt.Errorf("field chain is empty")
	}

	for i, part := range field.Chain {
		if err := ValidateIdentifier(part); err != nil {
			return wrap.Error(err, "invalid field chain")
		}
		if i > 0 {
			builder.WriteByte('.')
		}
		builder.WriteIdentifier(part)
	}

	return nil
}

func writeConstant(builder *QueryBuilder, value any) error {
	switch value := value.(type) {
	case nil:
		builder.WriteString("NULL")
	case bool:
		if value {
			builder.WriteString("true")
		} else {
			builder.WriteString("false")
		}
	case string:
		builder.WriteStringLiteral(value)
	case int:
		builder.WriteInt(value)
	case int64:
		builder.WriteInt(int(value))
	case float64:
		builder.WriteFloat(value)
	case []any:
		builder.WriteByte('(')
		for i, element := range value {
			if i > 0 {
				builder.WriteString(", ")
			}
			if err := writeConstant(builder, element); err != nil {
				return err
			}
		}
		builder.WriteByte(')')
	default:
		return fmt.Errorf("unsupported constant value '%v' of type %T", value, value)
	}

	return nil
}

func writeCall(builder *QueryBuilder, call *ast.Call) error {
	if err := ValidateIdentifier(call.Name); err != nil {
		return wrap.Error(err, "invalid function name")
	}
	builder.WriteString(call.Name)

	if len(call.Params) > 0 {
		builder.WriteByte('(')
		for i, param := range call.Params {
			if i > 0 {
				builder.WriteString(", ")
			}
			if err := writeExpr(builder, param); err != nil {
				return err
			}
		}
		builder.WriteByte(')')
	}

	builder.WriteByte('(')
	for i, arg := range call.Args {
		if i > 0 {
			builder.WriteString(", ")
		}
		if err := writeExpr(builder, arg); err != nil {
			return err
		}
	}
	builder.WriteByte(')')

	return nil
}

func writeLogical(builder *QueryBuilder, exprs []ast.Expr, separator string) error {
	if len(exprs) == 0 {
		return fmt.Errorf("logical expression has no operands")
	}

	builder.WriteByte('(')
	for i, expr := range exprs {
		if i > 0 {
			builder.WriteString(separator)
		}
		if err := writeExpr(builder, expr); err != nil {
			return err
		}
	}
	builder.WriteByte(')')
	return nil
}

func writeCompare(builder *QueryBuilder, compare *ast.CompareOperation) error {
	// Regex comparisons map to engine functions rather than infix operators.
	switch compare.Op {
	case ast.Regex, ast.NotRegex:
		if compare.Op == ast.NotRegex {
			builder.WriteString("NOT ")
		}
		builder.WriteString("match(")
		if err := writeExpr(builder, compare.Left); err != nil {
			return err
		}
		builder.WriteString(", ")
		if err := writeExpr(builder, compare.Right); err != nil {
			return err
		}
		builder.WriteByte(')')
		return nil
	}

	if err := writeExpr(builder, compare.Left); err != nil {
		return err
	}

	switch compare.Op {
	case ast.Eq:
		builder.WriteString(" = ")
	case ast.NotEq:
		builder.WriteString(" != ")
	case ast.Gt:
		builder.WriteString(" > ")
	case ast.GtEq:
		builder.WriteString(" >= ")
	case ast.Lt:
		builder.WriteString(" < ")
	case ast.LtEq:
		builder.WriteString(" <= ")
	case ast.Like:
		builder.WriteString(" LIKE ")
	case ast.NotLike:
		builder.WriteString(" NOT LIKE ")
	case ast.ILike:
		builder.WriteString(" ILIKE ")
	case ast.NotILike:
		builder.WriteString(" NOT ILIKE ")
	case ast.In:
		builder.WriteString(" IN ")
	case ast.NotIn:
		builder.WriteString(" NOT IN ")
	default:
		return fmt.Errorf("unrecognized comparison operator '%v'", compare.Op)
	}

	return writeExpr(builder, compare.Right)
}
