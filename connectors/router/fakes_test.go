// SPDX-License-Identifier: ice License 1.0

package router

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	stdlibtime "time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const testProbeTimeout = 50 * stdlibtime.Millisecond

var errTxUnsupported = errors.New("transactions are not supported by fakes")

type (
	fakeHandle struct {
		err        error
		id         string
		closeDelay stdlibtime.Duration
		calls      atomic.Int64
		probes     atomic.Int64
		closes     atomic.Int64
		down       atomic.Bool
		probePanic bool
		closePanic bool
	}
	fakeRow struct {
		err error
	}
	recordingSink struct {
		events []Event
		mu     sync.Mutex
	}
)

func newFakeHandle(id string) *fakeHandle {
	return &fakeHandle{id: id, err: errors.Errorf("%v is down", id)}
}

func (f *fakeHandle) Query(context.Context, string, ...any) (pgx.Rows, error) {
	f.calls.Add(1)
	if f.down.Load() {
		return nil, f.err
	}

	return nil, nil //nolint:nilnil // Fakes don't produce rows.
}

func (f *fakeHandle) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	f.calls.Add(1)
	if f.down.Load() {
		return pgconn.CommandTag{}, f.err
	}

	return pgconn.NewCommandTag("INSERT 0 3"), nil
}

func (f *fakeHandle) QueryRow(context.Context, string, ...any) pgx.Row {
	f.probes.Add(1)
	if f.probePanic {
		panic(f.id + " probe exploded")
	}
	if f.down.Load() {
		return fakeRow{err: f.err}
	}

	return fakeRow{}
}

func (*fakeHandle) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return nil, errTxUnsupported
}

func (f *fakeHandle) Ping(context.Context) error {
	if f.down.Load() {
		return f.err
	}

	return nil
}

func (f *fakeHandle) Close() {
	f.closes.Add(1)
	if f.closePanic {
		panic(f.id + " close exploded")
	}
	stdlibtime.Sleep(f.closeDelay)
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int)) = 1 //nolint:forcetypeassert // We know it's the probe.

	return nil
}

func (s *recordingSink) Observe(evt *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *evt)
}

func (s *recordingSink) byKind(kind Kind) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Event
	for _, evt := range s.events {
		if evt.Kind == kind {
			res = append(res, evt)
		}
	}

	return res
}

// whoAmI is the operation used all over the tests: it answers with the id of the handle it ran on.
func whoAmI(_ context.Context, conn Handle) (string, error) {
	h := conn.(*fakeHandle) //nolint:forcetypeassert // Only fakes in here.
	h.calls.Add(1)
	if h.down.Load() {
		return "", h.err
	}

	return h.id, nil
}

func fakeDialer(handles ...*fakeHandle) Dialer {
	byURL := make(map[string]*fakeHandle, len(handles))
	for _, h := range handles {
		byURL[h.id] = h
	}

	return func(_ context.Context, connString string) (Pool, error) {
		if h, found := byURL[connString]; found {
			return h, nil
		}

		return nil, errors.Errorf("no such database %v", connString)
	}
}

// replicaConfig builds the read replica list out of fake ids; ids double as connection strings.
func replicaConfig(urls ...string) []ReplicaConfig {
	res := make([]ReplicaConfig, 0, len(urls))
	for _, url := range urls {
		res = append(res, ReplicaConfig{ID: url, URL: url})
	}

	return res
}

func newTestRouter(t *testing.T, cfg *Config, handles ...*fakeHandle) (*Router, *recordingSink) {
	t.Helper()
	if cfg.HealthCheckTimeout == 0 {
		cfg.HealthCheckTimeout = testProbeTimeout
	}
	sink := new(recordingSink)
	r, err := New(t.Context(), cfg, WithDialer(fakeDialer(handles...)), WithEventSink(sink))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Shutdown(context.Background()) //nolint:errcheck // Some tests break closing on purpose.
	})

	return r, sink
}
