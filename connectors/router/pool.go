// SPDX-License-Identifier: ice License 1.0

package router

import (
	"context"
	"fmt"
	"strings"
	stdlibtime "time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/rwrouter/log"
)

//nolint:gochecknoglobals // Immutable.
var sessionTimeoutParameters = []string{"statement_timeout", "idle_in_transaction_session_timeout", "lock_timeout"}

// newPoolDialer creates pgxpool pools. Pool settings present in the connection string win over the defaults below.
func newPoolDialer(cfg *Config) Dialer {
	return func(ctx context.Context, connString string) (Pool, error) {
		poolConfig, err := pgxpool.ParseConfig(connString)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse pool config: %v", log.MaskURL(connString))
		}
		lowered := strings.ToLower(connString)
		poolConfig.ConnConfig.StatementCacheCapacity = 1024
		poolConfig.ConnConfig.DescriptionCacheCapacity = 1024
		if !strings.Contains(lowered, "connect_timeout") {
			poolConfig.ConnConfig.ConnectTimeout = 30 * stdlibtime.Second
		}
		if !strings.Contains(lowered, "pool_max_conn_idle_time") {
			poolConfig.MaxConnIdleTime = stdlibtime.Minute
		}
		if !strings.Contains(lowered, "pool_health_check_period") {
			poolConfig.HealthCheckPeriod = 30 * stdlibtime.Second
		}
		if cfg.MaxConns > 0 && !strings.Contains(lowered, "pool_max_conns") {
			poolConfig.MaxConns = cfg.MaxConns
		}
		if !strings.Contains(lowered, "pool_min_conns") {
			poolConfig.MinConns = max(cfg.MinConns, 1)
		}
		poolConfig.MaxConnLifetime = 24 * stdlibtime.Hour
		poolConfig.MaxConnLifetimeJitter = 10 * stdlibtime.Minute
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return doAfterConnect(ctx, "", conn)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to start pool for config: %v", log.MaskURL(connString))
		}

		return pool, nil
	}
}

// doAfterConnect sets the session timeouts ("0" disables them, "" means the default) and validates the connection.
func doAfterConnect(ctx context.Context, timeout string, conn *pgx.Conn) error {
	if timeout == "" {
		timeout = defaultSessionTimeout
	}
	for _, name := range sessionTimeoutParameters {
		if _, err := conn.Exec(ctx, fmt.Sprintf(`SET %v = '%v'`, name, timeout)); err != nil {
			return errors.Wrapf(err, "failed to set %v", name)
		}
	}
	var res int
	if err := conn.QueryRow(ctx, healthProbeSQL).Scan(&res); err != nil {
		return errors.Wrap(err, "dummy select failed")
	}
	if res != 1 {
		return errors.New("db validation failed")
	}

	return nil
}
