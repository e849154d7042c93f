// SPDX-License-Identifier: ice License 1.0

package router

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/puddle/v2"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/rwrouter/log"
	"github.com/ice-blockchain/rwrouter/terror"
)

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("%v on %v: %v", ErrWriteFailure, e.Target, e.Cause)
}

func (e *WriteFailure) Unwrap() error {
	return e.Cause
}

func (*WriteFailure) Is(target error) bool {
	return target == ErrWriteFailure //nolint:errorlint // Sentinel identity is what we're after.
}

func (e *ReadFailure) Error() string {
	if e.Replica == "" || e.Replica == e.Target {
		if e.ReplicaErr != nil && !errors.Is(e.Cause, e.ReplicaErr) {
			return fmt.Sprintf("%v on %v (replica failed with: %v): %v", ErrReadFailure, e.Target, e.ReplicaErr, e.Cause)
		}

		return fmt.Sprintf("%v on %v: %v", ErrReadFailure, e.Target, e.Cause)
	}

	return fmt.Sprintf("%v on %v (after replica %v failed with: %v): %v", ErrReadFailure, e.Target, e.Replica, e.ReplicaErr, e.Cause)
}

func (e *ReadFailure) Unwrap() error {
	return e.Cause
}

func (*ReadFailure) Is(target error) bool {
	return target == ErrReadFailure //nolint:errorlint // Sentinel identity is what we're after.
}

func IsErr(err, target error, column ...string) bool {
	if !errors.Is(err, target) {
		return false
	}
	if len(column) == 1 && column[0] != "" {
		if val, found := terror.Value(err, "column"); found {
			return val == column[0]
		}
	}

	return true
}

// IsConnectionError reports whether err means the target itself is unreachable or broken,
// as opposed to the statement being rejected.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var (
		netOpErr *net.OpError
		connErr  *pgconn.ConnectError
		pgErr    *pgconn.PgError
		netErr   net.Error
	)
	if errors.As(err, &netOpErr) || errors.As(err, &connErr) {
		return true
	}
	if errors.As(err, &pgErr) {
		code := pgErr.SQLState()

		return pgerrcode.IsConnectionException(code) ||
			pgerrcode.IsSystemError(code) ||
			pgerrcode.IsInternalError(code) ||
			pgerrcode.IsConfigurationFileError(code) ||
			pgerrcode.IsOperatorIntervention(code)
	}
	for _, expectedErr := range []error{puddle.ErrClosedPool, io.ErrUnexpectedEOF, io.EOF, syscall.EPIPE, syscall.ECONNREFUSED, syscall.ECONNRESET, net.ErrClosed} {
		if errors.Is(err, expectedErr) {
			return true
		}
	}

	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case IsConnectionError(err):
		return OutcomeConnectionError
	default:
		return OutcomeQueryError
	}
}

func parseDBError(err error) error {
	if err == nil {
		return nil
	}
	var dbErr *pgconn.PgError
	if errors.As(err, &dbErr) {
		switch dbErr.SQLState() {
		case pgerrcode.UniqueViolation:
			if strings.HasSuffix(dbErr.ConstraintName, "_pkey") {
				return terror.New(ErrDuplicate, map[string]any{"column": "pk"})
			}

			return terror.New(ErrDuplicate, map[string]any{"column": constraintColumn(dbErr, "_key")})
		case pgerrcode.ForeignKeyViolation:
			return terror.New(ErrRelationNotFound, map[string]any{"column": constraintColumn(dbErr, "_fkey")})
		default:
			return err
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	return err
}

func constraintColumn(dbErr *pgconn.PgError, suffix string) string {
	column := strings.ReplaceAll(dbErr.ConstraintName, dbErr.TableName, "")
	column = strings.ReplaceAll(column, suffix, "")

	return strings.ReplaceAll(column, "_", "")
}

func logReplicaFailure(replica, correlationID string, err error) {
	log.Warn("read replica failed, falling back to the write target",
		"target", replica, "correlationId", correlationID, "outcome", outcomeOf(err).String(), "error", err.Error())
}
