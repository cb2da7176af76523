package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction and hands the
// infra-specific handle (pgx.Tx for Postgres) to fn as tx. Repositories must
// accept a nil tx and fall back to the pool.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		if err := apps.Update(ctx, tx, id, patch); err != nil {
//			return err
//		}
//		return logs.Append(ctx, tx, entry)
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
