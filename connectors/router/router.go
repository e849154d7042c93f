// SPDX-License-Identifier: ice License 1.0

package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	appCfg "github.com/ice-blockchain/rwrouter/config"
	"github.com/ice-blockchain/rwrouter/log"
	"github.com/ice-blockchain/rwrouter/terror"
)

// MustConnect loads the router section of applicationYAMLKey, applies the DATABASE_* environment overrides and connects.
func MustConnect(ctx context.Context, applicationYAMLKey string, opts ...Option) *Router {
	var cfg config
	appCfg.MustLoadFromKey(applicationYAMLKey, &cfg)
	cfg.Router.applyEnv()
	r, err := New(ctx, &cfg.Router, opts...)
	log.Panic(errors.Wrapf(err, "failed to connect router for %v", applicationYAMLKey)) //nolint:revive // Intended.

	return r
}

// New eagerly creates one pool per configured target. Replicas without a connection string are left out.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	r := &Router{cfg: cfg.withDefaults()}
	for _, opt := range opts {
		opt(r)
	}
	if r.dialer == nil {
		r.dialer = newPoolDialer(r.cfg)
	}
	if r.sink == nil {
		r.sink = NewLogSink()
	}
	var err error
	if r.write, err = r.connectTarget(ctx, WriteTargetID, RoleWrite, r.cfg.WriteURL); err != nil {
		return nil, err
	}
	r.reads = make([]*Target, 0, len(r.cfg.ReadReplicas))
	for ix, replica := range r.cfg.ReadReplicas {
		id := replicaID(ix, replica)
		if strings.TrimSpace(replica.URL) == "" {
			log.Warn("read replica excluded, no connection string configured", "target", id)

			continue
		}
		target, cErr := r.connectTarget(ctx, id, RoleRead, replica.URL)
		if cErr != nil {
			r.closeTargets(ctx)

			return nil, cErr
		}
		r.reads = append(r.reads, target)
	}
	if r.ddl != nil && r.cfg.RunDDL {
		if err = r.ddl.run(ctx, r.write.handle); err != nil {
			r.closeTargets(ctx)

			return nil, errors.Wrap(err, "failed to run DDL on the write target")
		}
	}
	log.Info(fmt.Sprintf("router configured with %v read target(s)", len(r.reads)), "write", log.MaskURL(r.write.connString))
	if r.cfg.HealthCheckInterval > 0 {
		r.startHealthChecker(ctx)
	}

	return r, nil
}

func WithDialer(dialer Dialer) Option {
	return func(r *Router) {
		r.dialer = dialer
	}
}

func WithEventSink(sinks ...EventSink) Option {
	return func(r *Router) {
		if len(sinks) == 1 {
			r.sink = sinks[0]
		} else {
			r.sink = MultiSink(sinks)
		}
	}
}

func WithDDL(ddl DDL) Option {
	return func(r *Router) {
		r.ddl = ddl
	}
}

func (r *Router) connectTarget(ctx context.Context, id string, role Role, connString string) (*Target, error) {
	pool, err := r.dialer(ctx, connString)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect %v target %v", role, id)
	}
	target := &Target{id: id, role: role, connString: connString, handle: pool}
	target.healthy.Store(true)

	return target, nil
}

// Write returns the single write target.
func (r *Router) Write() *Target {
	return r.write
}

// Reads returns the read targets in rotation order.
func (r *Router) Reads() []*Target {
	return append(make([]*Target, 0, len(r.reads)), r.reads...)
}

func (r *Router) targets() []*Target {
	return append(append(make([]*Target, 0, len(r.reads)+1), r.write), r.reads...)
}

func (t *Target) ID() string {
	return t.id
}

func (t *Target) Role() Role {
	return t.role
}

func (t *Target) Handle() Handle {
	return t.handle
}

func (t *Target) Healthy() bool {
	return t.healthy.Load()
}

func (c *Config) validate() error {
	if c == nil || strings.TrimSpace(c.WriteURL) == "" {
		return terror.New(ErrConfiguration, map[string]any{"target": WriteTargetID, "reason": "missing write connection string"})
	}
	seen := make(map[string]struct{}, len(c.ReadReplicas))
	for ix, replica := range c.ReadReplicas {
		id := replicaID(ix, replica)
		if id == WriteTargetID {
			return terror.New(ErrConfiguration, map[string]any{"target": id, "reason": "replica id clashes with the write target"})
		}
		if _, found := seen[id]; found {
			return terror.New(ErrConfiguration, map[string]any{"target": id, "reason": "duplicate replica id"})
		}
		seen[id] = struct{}{}
	}

	return nil
}

func (c *Config) withDefaults() *Config {
	cfg := *c
	cfg.ReadReplicas = append(make([]ReplicaConfig, 0, len(c.ReadReplicas)), c.ReadReplicas...)
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = defaultHealthCheckTimeout
	}

	return &cfg
}

func replicaID(ix int, replica ReplicaConfig) string {
	if id := strings.TrimSpace(replica.ID); id != "" {
		return id
	}

	return fmt.Sprintf("read-%v", ix)
}

func (r Role) String() string {
	if r == RoleWrite {
		return "write"
	}

	return "read"
}

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindFallback:
		return "fallback"
	case KindHealth:
		return "health"
	default:
		return "unknown"
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeQueryError:
		return "query_error"
	case OutcomeConnectionError:
		return "connection_error"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}
