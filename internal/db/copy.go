// Package db provides shared Postgres helpers for bulk copy and transactions.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultCopyChunk is the number of rows sent per COPY statement.
const DefaultCopyChunk = 10000

// CopyChunked bulk-loads rows into table with the COPY protocol, at most
// chunk rows per statement. It returns the rows copied before any failure;
// chunks already copied are not rolled back.
func CopyChunked(ctx context.Context, pool Pool, table string, columns []string, rows [][]any, chunk int) (int64, error) {
	if chunk <= 0 {
		chunk = DefaultCopyChunk
	}

	var total int64
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows[start:end]))
		total += n
		if err != nil {
			return total, eris.Wrapf(err, "db: COPY INTO %s rows %d-%d", table, start, end)
		}
		if len(rows) > chunk {
			zap.L().Debug("db: copy progress",
				zap.String("table", table),
				zap.Int64("copied", total),
				zap.Int("rows", len(rows)),
			)
		}
	}
	return total, nil
}
