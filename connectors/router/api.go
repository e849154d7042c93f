// SPDX-License-Identifier: ice License 1.0

package router

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Query routes sql by its classification, so the router itself can be handed to anything that expects a pgxscan.Querier.
func (r *Router) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	stmt, kind := Classify(sql)
	query := func(ctx context.Context, conn Handle) (pgx.Rows, error) {
		return conn.Query(ctx, stmt, args...) //nolint:wrapcheck // It's just a proxy.
	}
	if kind == KindRead {
		return ExecuteRead(ctx, r, query)
	}

	return ExecuteWrite(ctx, r, query)
}

// Exec always runs on the write target.
func (r *Router) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return ExecuteWrite(ctx, r, func(ctx context.Context, conn Handle) (pgconn.CommandTag, error) {
		return conn.Exec(ctx, sql, args...) //nolint:wrapcheck // It's just a proxy.
	})
}

// DoInTransaction runs fn inside a single serializable transaction on the write target.
func DoInTransaction(ctx context.Context, r *Router, fn func(conn QueryExecer) error) error {
	txOptions := pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite, DeferrableMode: pgx.NotDeferrable}
	_, err := ExecuteWrite(ctx, r, func(ctx context.Context, conn Handle) (struct{}, error) {
		return struct{}{}, pgx.BeginTxFunc(ctx, conn, txOptions, func(tx pgx.Tx) error { return fn(tx) }) //nolint:wrapcheck // .
	})

	return err
}

func Get[T any](ctx context.Context, db Querier, sql string, args ...any) (*T, error) {
	get := func(ctx context.Context, conn Querier) (*T, error) {
		resp := new(T)
		if err := pgxscan.Get(ctx, conn, resp, sql, args...); err != nil {
			return nil, parseDBError(err)
		}

		return resp, nil
	}
	if r, ok := db.(*Router); ok {
		return ExecuteRead(ctx, r, func(ctx context.Context, conn Handle) (*T, error) { return get(ctx, conn) })
	}

	return get(ctx, db)
}

func Select[T any](ctx context.Context, db Querier, sql string, args ...any) ([]*T, error) {
	if r, ok := db.(*Router); ok {
		return ExecuteRead(ctx, r, func(ctx context.Context, conn Handle) ([]*T, error) { return selectAll[T](ctx, conn, sql, args...) })
	}

	return selectAll[T](ctx, db, sql, args...)
}

func Exec(ctx context.Context, db Execer, sql string, args ...any) (affectedRows uint64, err error) {
	exec := func(ctx context.Context, conn Execer) (uint64, error) {
		resp, eErr := conn.Exec(ctx, sql, args...)
		if eErr != nil {
			return 0, parseDBError(eErr)
		}

		return uint64(resp.RowsAffected()), nil //nolint:gosec // Never negative.
	}
	if r, ok := db.(*Router); ok {
		return ExecuteWrite(ctx, r, func(ctx context.Context, conn Handle) (uint64, error) { return exec(ctx, conn) })
	}

	return exec(ctx, db)
}

// ExecOne runs a writing statement that returns exactly one row (INSERT ... RETURNING *).
func ExecOne[T any](ctx context.Context, db Querier, sql string, args ...any) (*T, error) {
	execOne := func(ctx context.Context, conn Querier) (*T, error) {
		resp := new(T)
		if err := pgxscan.Get(ctx, conn, resp, sql, args...); err != nil {
			return nil, parseDBError(err)
		}

		return resp, nil
	}
	if r, ok := db.(*Router); ok {
		return ExecuteWrite(ctx, r, func(ctx context.Context, conn Handle) (*T, error) { return execOne(ctx, conn) })
	}

	return execOne(ctx, db)
}

func ExecMany[T any](ctx context.Context, db Querier, sql string, args ...any) ([]*T, error) {
	if r, ok := db.(*Router); ok {
		return ExecuteWrite(ctx, r, func(ctx context.Context, conn Handle) ([]*T, error) { return selectAll[T](ctx, conn, sql, args...) })
	}

	return selectAll[T](ctx, db, sql, args...)
}

func selectAll[T any](ctx context.Context, conn Querier, sql string, args ...any) ([]*T, error) {
	var resp []*T
	if err := pgxscan.Select(ctx, conn, &resp, sql, args...); err != nil {
		return nil, parseDBError(err)
	}

	return resp, nil
}
