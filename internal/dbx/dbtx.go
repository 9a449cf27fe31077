// Package dbx provides the small DB abstractions shared by repositories:
// DBTX, implemented by both *sql.DB and *sql.Tx, and WithTx which runs a
// function inside a transaction.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by the repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with the transactional handle and
// commits when fn succeeds. The transaction is rolled back when fn returns
// an error or panics; panics are rethrown.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    users := manager.Users(tx)
//	    ...
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// TxRunner runs fn inside a unit of work and commits when it returns nil.
type TxRunner func(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error

// SQLTxRunner returns a TxRunner backed by WithTx on db.
func SQLTxRunner(db *sql.DB) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
		return WithTx(ctx, db, nil, fn)
	}
}
