package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// NoTX marks the non-transactional path when calling repository methods.
var NoTX Tx

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via `tx`. Keeping the type opaque means the
// use-case layer never imports a driver; repositories detect the concrete
// handle (pgx.Tx for Postgres) on their side and must gracefully accept a nil
// handle for the non-transactional path.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
