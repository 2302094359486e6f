package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fetanpay/verification-service/internal/domain/ports"
)

// querier is the statement surface shared by a pool and a transaction.
// Repositories run on the pool unless the caller hands them a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pick(pool *pgxpool.Pool, tx ports.DBTX) querier {
	if tx != nil {
		return tx
	}
	return pool
}
