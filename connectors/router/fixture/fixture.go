// SPDX-License-Identifier: ice License 1.0

package fixture

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	stdlibtime "time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // Registers the "pgx" driver wait.ForSQL needs.
	"github.com/pkg/errors"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ice-blockchain/rwrouter/log"
)

const (
	pgImage        = "postgres:17-alpine"
	pgUser         = "postgres"
	pgPass         = "postgres"
	pgDatabase     = "postgres"
	dbPort         = "5432/tcp"
	tempDBPrefix   = "rwrouterdbtest"
	startupTimeout = stdlibtime.Minute
)

type (
	// Container is a throwaway postgres server. Each test gets its own database in it, cloned from the default one.
	Container struct {
		container *postgres.PostgresContainer
		seed      uint64
		mu        sync.Mutex
	}
	Option = testcontainers.CustomizeRequestOption
)

func New(ctx context.Context, opts ...Option) *Container {
	customizers := []testcontainers.ContainerCustomizer{
		postgres.WithDatabase(pgDatabase),
		postgres.WithUsername(pgUser),
		postgres.WithPassword(pgPass),
		testcontainers.WithWaitStrategyAndDeadline(
			startupTimeout,
			wait.ForExposedPort(),
			wait.ForSQL(nat.Port(dbPort), "pgx", func(host string, port nat.Port) string {
				return connectionString(host, port.Port(), pgDatabase)
			}),
		),
	}
	for ix := range opts {
		customizers = append(customizers, opts[ix])
	}
	container, err := postgres.Run(ctx, pgImage, customizers...)
	log.Panic(errors.Wrap(err, "failed to start postgres container")) //nolint:revive // That's the point.

	return &Container{
		container: container,
		seed:      uint64(stdlibtime.Now().UnixMilli()), //nolint:gosec // Never negative.
	}
}

func (c *Container) ConnectionString(ctx context.Context, dbName string) string {
	containerPort, err := c.container.MappedPort(ctx, dbPort)
	log.Panic(errors.Wrap(err, "failed to get mapped port")) //nolint:revive // That's the point.
	host, err := c.container.Host(ctx)
	log.Panic(errors.Wrap(err, "failed to get container host"))
	if dbName == "" {
		dbName = pgDatabase
	}

	return connectionString(host, containerPort.Port(), dbName)
}

func (c *Container) Close(ctx context.Context) error {
	return errors.Wrap(c.container.Terminate(ctx), "failed to terminate postgres container")
}

// MustTempDB creates a fresh database and returns its connection string, plus a func dropping it.
func (c *Container) MustTempDB(ctx context.Context, name ...string) (connString string, drop func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dbName := tempDBPrefix + strconv.FormatUint(atomic.AddUint64(&c.seed, 1), 10)
	if len(name) > 0 && name[0] != "" {
		dbName = name[0]
	}
	conn, err := pgx.Connect(ctx, c.ConnectionString(ctx, pgDatabase))
	log.Panic(errors.Wrap(err, "failed to connect to postgres container")) //nolint:revive // That's the point.
	defer func() {
		log.Error(errors.Wrap(conn.Close(ctx), "failed to close postgres container connection"))
	}()
	_, err = conn.Exec(ctx, `CREATE DATABASE `+pgx.Identifier{dbName}.Sanitize()+` TEMPLATE `+pgDatabase)
	log.Panic(errors.Wrapf(err, "failed to create temp database %v", dbName))

	return c.ConnectionString(ctx, dbName), func(dctx context.Context) error {
		dropConn, dErr := pgx.Connect(dctx, c.ConnectionString(dctx, pgDatabase))
		if dErr != nil {
			return errors.Wrap(dErr, "failed to connect to postgres container")
		}
		defer dropConn.Close(dctx) //nolint:errcheck // Nothing to do about it.
		_, dErr = dropConn.Exec(dctx, `DROP DATABASE IF EXISTS `+pgx.Identifier{dbName}.Sanitize()+` WITH (FORCE)`)

		return errors.Wrapf(dErr, "failed to drop temp database %v", dbName)
	}
}

func connectionString(host, port, dbName string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(pgUser, pgPass),
		Host:   net.JoinHostPort(host, port),
		Path:   dbName,
	}

	return u.String()
}
