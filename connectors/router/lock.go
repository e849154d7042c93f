// SPDX-License-Identifier: ice License 1.0

package router

import (
	"context"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
)

// NewMutex returns a session level advisory lock. Locks only make sense on the write target, so that's where it lives.
func NewMutex(r *Router, lockID string) Mutex {
	return &advisoryLockMutex{router: r, id: int64(xxh3.HashString(lockID))} //nolint:gosec // Overflow is fine, it's a hash.
}

func (l *advisoryLockMutex) Lock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lock(ctx)
}

func (l *advisoryLockMutex) lock(ctx context.Context) error {
	acquirer, ok := l.router.write.handle.(Acquirer)
	if !ok {
		return ErrNotAcquirable
	}
	conn, err := acquirer.Acquire(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to acquire connection to DB")
	}
	isLockAcquired := false
	if err = conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.id).Scan(&isLockAcquired); err != nil {
		conn.Release()

		return errors.Wrapf(err, "failed to pg_try_advisory_lock for advisoryLockMutex %v", l.id)
	}
	if !isLockAcquired {
		conn.Release()

		return ErrMutexNotLocked
	}
	l.conn = conn

	return nil
}

func (l *advisoryLockMutex) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return ErrMutexNotLocked
	}
	defer func() {
		l.conn.Release()
		l.conn = nil
	}()
	if _, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.id); err != nil {
		return errors.Wrapf(err, "failed to pg_advisory_unlock for advisoryLockMutex %v", l.id)
	}

	return nil
}

func (l *advisoryLockMutex) EnsureLocked(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return ErrMutexNotLocked
	}
	if l.conn.Conn().IsClosed() || l.conn.Ping(ctx) != nil {
		l.conn.Release()
		l.conn = nil

		return l.lock(ctx)
	}

	return nil
}
