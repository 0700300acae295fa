package insightsquery

import (
	"context"
	"time"

	"hermannm.dev/insights/ast"
	"hermannm.dev/insights/db"
)

// QueryExecutor is the execution-engine boundary: it takes a built query AST and
// returns paginated, typed rows. Satisfied by db.InsightsDB.
type QueryExecutor interface {
	ExecutePaged(
		ctx context.Context,
		queryType string,
		query ast.Expr,
		paginator db.Paginator,
	) (db.PagedResult, error)
}

const engineTimestampFormat = "2006-01-02 15:04:05"

func timestampConstant(timestamp time.Time) ast.Expr {
	return &ast.Call{
		Name: "toDateTime",
		Args: []ast.Expr{&ast.Constant{Value: timestamp.UTC().Format(engineTimestampFormat)}},
	}
}
