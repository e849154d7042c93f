// SPDX-License-Identifier: ice License 1.0

package router

import (
	"context"
	stdlibtime "time"

	"github.com/google/uuid"
)

// ExecuteWrite runs op exactly once, on the write target. Failures are surfaced as *WriteFailure and never retried,
// since replaying a write elsewhere could duplicate it.
func ExecuteWrite[T any](ctx context.Context, r *Router, op Operation[T]) (T, error) {
	var zero T
	if r.closed.Load() {
		return zero, &WriteFailure{Target: r.write.id, Cause: ErrClosed}
	}
	res := try(ctx, r.write, op)
	r.observe(KindWrite, res.target, res.duration, res.err, "")
	if res.err != nil {
		return zero, &WriteFailure{Target: res.target.id, Cause: res.err}
	}

	return res.value, nil
}

// ExecuteRead runs op on the next replica and, if that fails, once more on the write target.
// Only when the write target fails too does the caller see an error: a *ReadFailure wrapping the write target's error.
func ExecuteRead[T any](ctx context.Context, r *Router, op Operation[T]) (T, error) {
	var zero T
	if r.closed.Load() {
		return zero, &ReadFailure{Target: r.write.id, Cause: ErrClosed}
	}
	first := try(ctx, r.nextReadTarget(), op)
	if first.err == nil {
		r.observe(KindRead, first.target, first.duration, nil, "")

		return first.value, nil
	}
	if first.target == r.write {
		r.observe(KindRead, first.target, first.duration, first.err, "")

		return zero, &ReadFailure{Target: first.target.id, Cause: first.err}
	}
	correlationID := uuid.NewString()
	r.observe(KindRead, first.target, first.duration, first.err, correlationID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, &ReadFailure{Target: first.target.id, Replica: first.target.id, Cause: ctxErr, ReplicaErr: first.err}
	}
	logReplicaFailure(first.target.id, correlationID, first.err)
	second := try(ctx, r.write, op)
	r.observe(KindFallback, second.target, second.duration, second.err, correlationID)
	if second.err != nil {
		return zero, &ReadFailure{Target: second.target.id, Replica: first.target.id, Cause: second.err, ReplicaErr: first.err}
	}

	return second.value, nil
}

func try[T any](ctx context.Context, target *Target, op Operation[T]) attempt[T] {
	start := stdlibtime.Now()
	value, err := op(ctx, target.handle)

	return attempt[T]{value: value, err: err, target: target, duration: stdlibtime.Since(start)}
}
