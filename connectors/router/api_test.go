// SPDX-License-Identifier: ice License 1.0

package router

import (
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterQueryRoutesByStatement(t *testing.T) {
	t.Parallel()

	main, r1 := newFakeHandle("db-main"), newFakeHandle("db-r1")
	r, sink := newTestRouter(t, &Config{WriteURL: "db-main", ReadReplicas: replicaConfig("db-r1")}, main, r1)

	_, err := r.Query(t.Context(), "SELECT * FROM users")
	require.NoError(t, err)
	assert.EqualValues(t, 1, r1.calls.Load())
	assert.Zero(t, main.calls.Load())

	_, err = r.Query(t.Context(), "INSERT INTO users VALUES ($1) RETURNING *", 1)
	require.NoError(t, err)
	_, err = r.Query(t.Context(), "{{writable}} SELECT * FROM users")
	require.NoError(t, err)
	assert.EqualValues(t, 2, main.calls.Load())
	assert.EqualValues(t, 1, r1.calls.Load())

	_, err = r.Query(t.Context(), "{{non-writable}} SELECT * FROM users")
	require.NoError(t, err)
	assert.EqualValues(t, 2, r1.calls.Load())
	assert.Len(t, sink.byKind(KindRead), 2)
	assert.Len(t, sink.byKind(KindWrite), 2)
}

func TestRouterQueryFallsBack(t *testing.T) {
	t.Parallel()

	main, r1 := newFakeHandle("db-main"), newFakeHandle("db-r1")
	r1.down.Store(true)
	r, _ := newTestRouter(t, &Config{WriteURL: "db-main", ReadReplicas: replicaConfig("db-r1")}, main, r1)
	_, err := r.Query(t.Context(), "SELECT 1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, r1.calls.Load())
	assert.EqualValues(t, 1, main.calls.Load())
}

func TestExecRunsOnTheWriteTarget(t *testing.T) {
	t.Parallel()

	main, r1 := newFakeHandle("db-main"), newFakeHandle("db-r1")
	r, _ := newTestRouter(t, &Config{WriteURL: "db-main", ReadReplicas: replicaConfig("db-r1")}, main, r1)

	tag, err := r.Exec(t.Context(), "UPDATE users SET a = 1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, tag.RowsAffected())
	affected, err := Exec(t.Context(), r, "DELETE FROM users")
	require.NoError(t, err)
	assert.EqualValues(t, 3, affected)
	assert.EqualValues(t, 2, main.calls.Load())
	assert.Zero(t, r1.calls.Load())

	main.down.Store(true)
	_, err = Exec(t.Context(), r, "DELETE FROM users")
	require.ErrorIs(t, err, ErrWriteFailure)
	require.ErrorIs(t, err, main.err)
	assert.Zero(t, r1.calls.Load())
}

func TestExecOutsideTheRouter(t *testing.T) {
	t.Parallel()

	conn := newFakeHandle("db-main")
	affected, err := Exec(t.Context(), conn, "DELETE FROM users")
	require.NoError(t, err)
	assert.EqualValues(t, 3, affected)

	conn.err = &pgconn.PgError{Code: pgerrcode.UniqueViolation, TableName: "users", ConstraintName: "users_pkey"}
	conn.down.Store(true)
	_, err = Exec(t.Context(), conn, "INSERT INTO users VALUES (1)")
	require.ErrorIs(t, err, ErrDuplicate)
	assert.True(t, IsErr(err, ErrDuplicate, "pk"))
}

func TestDoInTransactionUsesTheWriteTarget(t *testing.T) {
	t.Parallel()

	main, r1 := newFakeHandle("db-main"), newFakeHandle("db-r1")
	r, sink := newTestRouter(t, &Config{WriteURL: "db-main", ReadReplicas: replicaConfig("db-r1")}, main, r1)
	called := false
	err := DoInTransaction(t.Context(), r, func(QueryExecer) error {
		called = true

		return nil
	})
	require.ErrorIs(t, err, ErrWriteFailure)
	require.ErrorIs(t, err, errTxUnsupported)
	assert.False(t, called)
	events := sink.byKind(KindWrite)
	require.Len(t, events, 1)
	assert.Equal(t, WriteTargetID, events[0].Target)
}
