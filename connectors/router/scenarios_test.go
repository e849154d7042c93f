// SPDX-License-Identifier: ice License 1.0

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/ice-blockchain/rwrouter/testing"
)

func TestReadsRotateThenFallBack(t *testing.T) { //nolint:paralleltest // Scenarios are sequential on purpose.
	var (
		main, r1, r2 = newFakeHandle("db-main"), newFakeHandle("db-r1"), newFakeHandle("db-r2")
		r            *Router
		sink         *recordingSink
		answers      []string
	)
	GIVEN("a router with two healthy replicas", func() {
		r, sink = newTestRouter(t, &Config{WriteURL: "db-main", ReadReplicas: replicaConfig("db-r1", "db-r2")}, main, r1, r2)
	})
	WHEN("four reads are executed one after another", func() {
		for range 4 {
			res, err := ExecuteRead(t.Context(), r, whoAmI)
			require.NoError(t, err)
			answers = append(answers, res)
		}
	})
	THEN(func() {
		IT("alternates between the replicas, starting with the first one", func() {
			assert.Equal(t, []string{"db-r1", "db-r2", "db-r1", "db-r2"}, answers)
		})
		AND("never touches the write target", func() {
			assert.Zero(t, main.calls.Load())
		})
	})
	WHEN("the first replica goes down", func() {
		r1.down.Store(true)
		answers = answers[:0]
		for range 2 {
			res, err := ExecuteRead(t.Context(), r, whoAmI)
			require.NoError(t, err)
			answers = append(answers, res)
		}
	})
	THEN(func() {
		IT("serves its turn from the write target", func() {
			assert.Equal(t, []string{"db-main", "db-r2"}, answers)
			assert.EqualValues(t, 1, main.calls.Load())
		})
		AND("reports the fallback", func() {
			fallbacks := sink.byKind(KindFallback)
			require.Len(t, fallbacks, 1)
			assert.Equal(t, OutcomeOK, fallbacks[0].Outcome)
		})
	})
	WHEN("the write target goes down as well", func() {
		main.down.Store(true)
	})
	THEN(func() {
		IT("fails reads that hit the broken replica with the write target's error", func() {
			_, err := ExecuteRead(t.Context(), r, whoAmI)
			require.ErrorIs(t, err, ErrReadFailure)
			require.ErrorIs(t, err, main.err)
		})
		AND("still serves reads from the healthy replica", func() {
			res, err := ExecuteRead(t.Context(), r, whoAmI)
			require.NoError(t, err)
			assert.Equal(t, "db-r2", res)
		})
		AND("fails writes without touching the replicas", func() {
			calls := r1.calls.Load() + r2.calls.Load()
			_, err := ExecuteWrite(t.Context(), r, whoAmI)
			require.ErrorIs(t, err, ErrWriteFailure)
			assert.Equal(t, calls, r1.calls.Load()+r2.calls.Load())
		})
	})
}
