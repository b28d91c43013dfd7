package repository

import (
	"context"
	"database/sql"

	"github.com/annoworks/annotation-pipeline/internal/infrastructure/persistence/sqlite"
)

// executor interface covers both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// pickExecutor returns the context transaction when present, the pool
// otherwise. All repositories route their statements through this so writes
// inside WithTransaction share one transaction.
func pickExecutor(ctx context.Context, db *sql.DB) executor {
	if tx, ok := sqlite.TxFromContext(ctx); ok {
		return tx
	}
	return db
}
