package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"acmesync/internal/infrastructure/storage/sqlite"
)

func count(ctx context.Context, txm *sqlite.TxManager, builder squirrel.StatementBuilderType, table string) (int64, error) {
	q := builder.Select("COUNT(1)").From(table)

	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int64
	if err := sqlscan.Get(ctx, txm.GetQuerier(ctx), &n, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
