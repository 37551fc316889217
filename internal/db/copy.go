package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Copier is implemented by pools, connections and transactions.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// CopyFrom streams items into table with the COPY protocol. row maps each
// item to values in column order. An empty slice is a no-op.
func CopyFrom[T any](ctx context.Context, dst Copier, table string, columns []string, items []T, row func(T) []any) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	src := pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
		return row(items[i]), nil
	})
	n, err := dst.CopyFrom(ctx, pgx.Identifier{table}, columns, src)
	if err != nil {
		return 0, eris.Wrapf(err, "db: copy into %s", table)
	}
	if n != int64(len(items)) {
		return n, eris.Errorf("db: copy into %s wrote %d of %d rows", table, n, len(items))
	}
	return n, nil
}
