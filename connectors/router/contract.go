// SPDX-License-Identifier: ice License 1.0

package router

import (
	"context"
	"io/fs"
	"sync"
	"sync/atomic"
	stdlibtime "time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Public API.

const (
	WriteTargetID       = "write-main"
	ReadPrimaryTargetID = "read-primary"
	ReadEastTargetID    = "read-east"
)

const (
	RoleWrite Role = iota
	RoleRead
)

const (
	KindRead Kind = iota
	KindWrite
	KindFallback
	KindHealth
)

const (
	OutcomeOK Outcome = iota
	OutcomeQueryError
	OutcomeConnectionError
	OutcomeCanceled
)

var (
	ErrConfiguration    = errors.New("invalid router configuration")
	ErrWriteFailure     = errors.New("write failed")
	ErrReadFailure      = errors.New("read failed")
	ErrClosed           = errors.New("router is shut down")
	ErrNotFound         = errors.New("not found")
	ErrRelationNotFound = errors.New("relation not found")
	ErrDuplicate        = errors.New("duplicate")
	ErrMutexNotLocked   = errors.New("mutex not locked")
	ErrNotAcquirable    = errors.New("write target does not support dedicated connections")
)

type (
	Role    uint8
	Kind    uint8
	Outcome uint8

	Querier interface {
		pgxscan.Querier
	}
	Execer interface {
		Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error)
	}
	QueryExecer interface {
		Querier
		Execer
	}
	// Handle is what an operation gets to work with: a live pool (or anything pool-shaped) owned by a single target.
	Handle interface {
		QueryExecer
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
		BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
		Ping(ctx context.Context) error
	}
	Pool interface {
		Handle
		Close()
	}
	// Acquirer is implemented by pools that can hand out a dedicated connection (*pgxpool.Pool does).
	Acquirer interface {
		Acquire(ctx context.Context) (*pgxpool.Conn, error)
	}
	Dialer    func(ctx context.Context, connString string) (Pool, error)
	Operation[T any] func(ctx context.Context, conn Handle) (T, error)
	Option    func(*Router)

	Router struct {
		cfg          *Config
		write        *Target
		dialer       Dialer
		sink         EventSink
		ddl          DDL
		stopHealth   context.CancelFunc
		shutdownErr  error
		reads        []*Target
		healthWG     sync.WaitGroup
		shutdownOnce sync.Once
		cursor       atomic.Uint64
		closed       atomic.Bool
	}
	Target struct {
		handle     Pool
		id         string
		connString string
		role       Role
		healthy    atomic.Bool
	}

	Config struct {
		WriteURL              string              `yaml:"writeURL" mapstructure:"writeURL"`                           //nolint:tagliatelle // Nope.
		ReadReplicas          []ReplicaConfig     `yaml:"readReplicas" mapstructure:"readReplicas"`                   //nolint:tagliatelle // Nope.
		HealthCheckInterval   stdlibtime.Duration `yaml:"healthCheckInterval" mapstructure:"healthCheckInterval"`     //nolint:tagliatelle // Nope.
		HealthCheckTimeout    stdlibtime.Duration `yaml:"healthCheckTimeout" mapstructure:"healthCheckTimeout"`       //nolint:tagliatelle // Nope.
		MaxConns              int32               `yaml:"maxConns" mapstructure:"maxConns"`                           //nolint:tagliatelle // Nope.
		MinConns              int32               `yaml:"minConns" mapstructure:"minConns"`                           //nolint:tagliatelle // Nope.
		SkipUnhealthyReplicas bool                `yaml:"skipUnhealthyReplicas" mapstructure:"skipUnhealthyReplicas"` //nolint:tagliatelle // Nope.
		RunDDL                bool                `yaml:"runDDL" mapstructure:"runDDL"`                               //nolint:tagliatelle // Nope.
	}
	ReplicaConfig struct {
		ID  string `yaml:"id" mapstructure:"id"`
		URL string `yaml:"url" mapstructure:"url"`
	}

	HealthReport struct {
		CheckedAt       stdlibtime.Time `json:"checkedAt"`
		Targets         []*TargetHealth `json:"targets"`
		TotalReplicas   int             `json:"totalReplicas"`
		HealthyReplicas int             `json:"healthyReplicas"`
		WriteHealthy    bool            `json:"writeHealthy"`
	}
	TargetHealth struct {
		ID      string              `json:"id"`
		Role    string              `json:"role"`
		Error   string              `json:"error,omitempty"`
		Latency stdlibtime.Duration `json:"latency"`
		Healthy bool                `json:"healthy"`
	}

	// WriteFailure carries the error of the only write attempt; writes are never retried elsewhere.
	WriteFailure struct {
		Cause  error
		Target string
	}
	// ReadFailure carries the error of the last attempt of a read, which is the write target fallback
	// whenever a replica was tried first. ReplicaErr is the recovered replica error, if any.
	ReadFailure struct {
		Cause      error
		ReplicaErr error
		Target     string
		Replica    string
	}

	Event struct {
		Err           error
		Target        string
		CorrelationID string
		Duration      stdlibtime.Duration
		Kind          Kind
		Role          Role
		Outcome       Outcome
	}
	EventSink interface {
		Observe(evt *Event)
	}
	MultiSink []EventSink

	DDL interface {
		run(ctx context.Context, conn Handle) error
	}
	Mutex interface {
		Lock(ctx context.Context) error
		Unlock(ctx context.Context) error
		EnsureLocked(ctx context.Context) error
	}
)

// Private API.

const (
	defaultHealthCheckTimeout = 2 * stdlibtime.Second
	defaultSessionTimeout     = "30s"
	healthProbeSQL            = `SELECT 1`
	writableHint              = "{{writable}}"
	nonWritableHint           = "{{non-writable}}"
)

type (
	config struct {
		Router Config `yaml:"rwrouter/connectors/router" mapstructure:"rwrouter/connectors/router"` //nolint:tagliatelle // Nope.
	}
	attempt[T any] struct {
		value    T
		err      error
		target   *Target
		duration stdlibtime.Duration
	}
	logSink struct{}
	stringDDL struct {
		Data string
	}
	filesystemDDL struct {
		FS          fs.FS
		SchemeTable string
	}
	advisoryLockMutex struct {
		conn   *pgxpool.Conn
		router *Router
		id     int64
		mu     sync.Mutex
	}
)
